package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionMemories = "memories"

var ErrMemoryExists = goerr.New("memory already exists")

// Firestore keeps the fragment log in a Firestore collection, one document per memory
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore backed repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

// PutMemory creates the memory document. Existing IDs are never overwritten.
func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	doc := r.client.Collection(collectionMemories).Doc(string(memory.ID))
	if _, err := doc.Create(ctx, memory); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(ErrMemoryExists, "memory ID is already used", goerr.V("id", memory.ID))
		}
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", memory.ID))
	}

	return nil
}

// LoadMemories returns all memories ordered by timestamp, oldest first
func (r *Firestore) LoadMemories(ctx context.Context) (*LoadResult, error) {
	logger := logging.From(ctx)
	iter := r.client.Collection(collectionMemories).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	result := &LoadResult{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories")
		}

		var memory model.Memory
		if err := doc.DataTo(&memory); err != nil {
			logger.Debug("skip malformed memory document", "doc", doc.Ref.ID, "error", err)
			result.Skipped++
			continue
		}
		result.Memories = append(result.Memories, &memory)
	}

	return result, nil
}
