// Package semantic is the sole owner of all Qdrant operations: the durable,
// path-addressed chunk index behind the ingestion and retrieval workflows.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/p4kb/p4kb/engine/domain"
)

// scrollPageSize bounds one Scroll round-trip during listings.
const scrollPageSize = 1024

// VectorStore adapts Qdrant to the workflows' store contract.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// InsertIfAbsent durably persists a record keyed by its chunk ID. The point
// id is derived deterministically from the chunk ID, and a chunk ID uniquely
// determines its content, so re-inserting an existing record rewrites
// identical bytes: at-most-once storage holds even under concurrent callers.
func (v *VectorStore) InsertIfAbsent(ctx context.Context, rec domain.Record) error {
	payload := payloadFromMeta(rec.Text, rec.Meta)
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(rec.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Embedding},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: insert %s: %w", rec.ID, err)
	}
	return nil
}

// ListIDs returns the set of every stored chunk ID in one paged listing.
func (v *VectorStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := v.scroll(ctx, func(p *pb.RetrievedPoint) {
		if id := payloadString(p.GetPayload()[domain.MetaChunkID]); id != "" {
			ids[id] = struct{}{}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: list ids: %w", err)
	}
	return ids, nil
}

// ListMetadata returns the metadata of every stored record, used for the
// document-level dedup check ahead of extraction.
func (v *VectorStore) ListMetadata(ctx context.Context) ([]map[string]string, error) {
	var metas []map[string]string
	err := v.scroll(ctx, func(p *pb.RetrievedPoint) {
		_, meta := metaFromPayload(p.GetPayload())
		metas = append(metas, meta)
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: list metadata: %w", err)
	}
	return metas, nil
}

// scroll pages through all points in the collection, payload enabled.
func (v *VectorStore) scroll(ctx context.Context, visit func(*pb.RetrievedPoint)) error {
	limit := uint32(scrollPageSize)
	var offset *pb.PointId
	for {
		resp, err := v.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: v.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return err
		}
		for _, p := range resp.GetResult() {
			visit(p)
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

// Count returns the exact number of stored records.
func (v *VectorStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

// QueryNearest performs k-NN similarity search and returns flat ordered
// hits, nearest first. The similarity metric is the collection's.
func (v *VectorStore) QueryNearest(ctx context.Context, embedding []float32, k int) ([]domain.Hit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]domain.Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		text, meta := metaFromPayload(r.GetPayload())
		hits[i] = domain.Hit{
			ID:    meta[domain.MetaChunkID],
			Text:  text,
			Score: r.GetScore(),
			Meta:  meta,
		}
	}
	return hits, nil
}
