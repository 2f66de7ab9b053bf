package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection    = "users"
	memoriesCollection = "memories"

	// distanceField receives the cosine distance computed by FindNearest.
	distanceField = "vector_distance"
)

type memoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newMemoryRepository(client *firestore.Client) *memoryRepository {
	return &memoryRepository{client: client}
}

// memoryDoc is the Firestore document representation of model.Memory. The
// embedding is stored as a Vector32 so FindNearest can index it.
type memoryDoc struct {
	ID             string             `firestore:"ID"`
	UserID         string             `firestore:"UserID"`
	ConversationID string             `firestore:"ConversationID"`
	Content        string             `firestore:"Content"`
	Kind           string             `firestore:"Kind"`
	Importance     float64            `firestore:"Importance"`
	Embedding      firestore.Vector32 `firestore:"Embedding"`
	CreatedAt      time.Time          `firestore:"CreatedAt"`

	// Distance is populated only on FindNearest results.
	Distance float64 `firestore:"vector_distance"`
}

func toMemoryDoc(memory *model.Memory) *memoryDoc {
	return &memoryDoc{
		ID:             string(memory.ID),
		UserID:         memory.UserID,
		ConversationID: memory.ConversationID,
		Content:        memory.Content,
		Kind:           string(memory.Kind),
		Importance:     memory.Importance,
		Embedding:      firestore.Vector32(memory.Embedding),
		CreatedAt:      memory.CreatedAt,
	}
}

func (d *memoryDoc) toModel() *model.Memory {
	return &model.Memory{
		ID:             model.MemoryID(d.ID),
		UserID:         d.UserID,
		ConversationID: d.ConversationID,
		Content:        d.Content,
		Kind:           types.ParseMemoryKind(d.Kind),
		Importance:     d.Importance,
		Embedding:      []float32(d.Embedding),
		CreatedAt:      d.CreatedAt,
		Distance:       d.Distance,
	}
}

func (r *memoryRepository) collection(userID string) *firestore.CollectionRef {
	return r.client.
		Collection(r.collectionPrefix + usersCollection).
		Doc(userID).
		Collection(memoriesCollection)
}

func (r *memoryRepository) Create(ctx context.Context, userID string, memory *model.Memory) (*model.Memory, error) {
	if memory.ID == "" {
		memory.ID = model.NewMemoryID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	memory.UserID = userID

	doc := toMemoryDoc(memory)
	if _, err := r.collection(userID).Doc(string(memory.ID)).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory",
			goerr.V("userID", userID),
			goerr.V("memoryID", memory.ID))
	}

	return memory, nil
}

func (r *memoryRepository) Get(ctx context.Context, userID string, memoryID model.MemoryID) (*model.Memory, error) {
	snapshot, err := r.collection(userID).Doc(string(memoryID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "memory not found",
				goerr.V("userID", userID),
				goerr.V("memoryID", memoryID))
		}
		return nil, goerr.Wrap(err, "failed to get memory",
			goerr.V("userID", userID),
			goerr.V("memoryID", memoryID))
	}

	var doc memoryDoc
	if err := snapshot.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("memoryID", memoryID))
	}

	return doc.toModel(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, userID string, memoryID model.MemoryID) error {
	ref := r.collection(userID).Doc(string(memoryID))
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "memory not found",
				goerr.V("userID", userID),
				goerr.V("memoryID", memoryID))
		}
		return goerr.Wrap(err, "failed to get memory before delete", goerr.V("memoryID", memoryID))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory",
			goerr.V("userID", userID),
			goerr.V("memoryID", memoryID))
	}

	return nil
}

func (r *memoryRepository) List(ctx context.Context, userID string) ([]*model.Memory, error) {
	iter := r.collection(userID).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories", goerr.V("userID", userID))
		}

		var doc memoryDoc
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("docID", snapshot.Ref.ID))
		}
		memories = append(memories, doc.toModel())
	}

	return memories, nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.Memory, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("embedding is required for similarity search")
	}

	query := r.collection(userID).FindNearest(
		"Embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories by embedding", goerr.V("userID", userID))
		}

		var doc memoryDoc
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("docID", snapshot.Ref.ID))
		}
		memories = append(memories, doc.toModel())
	}

	return memories, nil
}
