package app

import (
	"fmt"
	"os"

	elasticclient "github.com/skillmatch/skillmatch-backend/internal/clients/elastic"
	"github.com/skillmatch/skillmatch-backend/internal/clients/openai"
	"github.com/skillmatch/skillmatch-backend/internal/clients/pinecone"
	redisclient "github.com/skillmatch/skillmatch-backend/internal/clients/redis"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
)

type Clients struct {
	Cache       redisclient.Cache
	OpenAI      openai.Client
	Pinecone    pinecone.Client
	VectorStore pinecone.VectorStore
	FullText    elasticclient.Index
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	cache, err := redisclient.NewCache(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis cache: %w", err)
	}

	aiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	pc, err := pinecone.New(log, pinecone.Config{
		APIKey: os.Getenv("PINECONE_API_KEY"),
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init pinecone client: %w", err)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pc)
	if err != nil {
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}

	fullText, err := elasticclient.NewIndex(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init elastic index: %w", err)
	}

	return Clients{
		Cache:       cache,
		OpenAI:      aiClient,
		Pinecone:    pc,
		VectorStore: vectorStore,
		FullText:    fullText,
	}, nil
}
