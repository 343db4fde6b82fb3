package pipeline

import (
	"context"
	"log"
	"strings"
	"time"
)

const memoryStoreTimeout = 5 * time.Second

// roomMemory wraps the configured long-term store. Writes are issued
// fire-and-forget so conversation flow never waits on storage; searches
// degrade to no recall on failure.
type roomMemory struct {
	client RoomMemory
}

func (m *roomMemory) set(client RoomMemory) {
	if m == nil {
		return
	}

	m.client = client
}

func (m *roomMemory) isConfigured() bool {
	return m != nil && m.client != nil
}

// store persists a turn in the background. The write outlives the
// calling turn's cancellation scope so interruptions do not lose
// already-spoken content.
func (m *roomMemory) store(ctx context.Context, speaker string, text string, isAgent bool) {
	if !m.isConfigured() || strings.TrimSpace(text) == "" {
		return
	}

	client := m.client
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), memoryStoreTimeout)
	go func() {
		defer cancel()
		if err := client.StoreTurn(storeCtx, speaker, text, isAgent); err != nil {
			log.Printf("Failed to store turn in memory: %v", err)
		}
	}()
}

// search retrieves stored context relevant to the query. Failures are
// logged and treated as no recall.
func (m *roomMemory) search(ctx context.Context, query string) string {
	if !m.isConfigured() {
		return ""
	}

	result, err := m.client.SearchRelevant(ctx, query)
	if err != nil {
		log.Printf("Failed to search memory: %v", err)
		return ""
	}
	return result
}

func (m *roomMemory) close(ctx context.Context) error {
	if !m.isConfigured() {
		return nil
	}

	switch closer := m.client.(type) {
	case interface{ Close(context.Context) error }:
		return closer.Close(ctx)
	case interface{ Close(context.Context) }:
		closer.Close(ctx)
	case interface{ Close() error }:
		return closer.Close()
	case interface{ Close() }:
		closer.Close()
	}
	return nil
}
