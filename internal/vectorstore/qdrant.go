package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store over a Qdrant collection via gRPC, using
// deterministic point ids, named-vector payloads, and batched upserts.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore dials addr (host:port, no scheme) and returns a Store
// scoped to collection. apiKey may be empty for unauthenticated deployments.
func NewQdrantStore(addr, collection, apiKey string) (*QdrantStore, error) {
	host, port := addr, 6334
	if h, p, err := net.SplitHostPort(addr); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			host, port = h, n
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant: %w", err)
	}
	return &QdrantStore{client: client, collection: collection}, nil
}

// EnsureCollection creates the backing collection if it does not already
// exist, with a named vector of the given dimension.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
	vectorName := vectorName(dim)
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
}

func vectorName(dim int) string {
	return "vs" + strconv.Itoa(dim)
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id: qdrant.NewIDStr(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				p.VectorName: qdrant.NewVector(p.Vector...),
			}),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qpoints,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

func (s *QdrantStore) Retrieve(ctx context.Context, id string, filter Filter) (*Point, error) {
	withPayload := qdrant.NewWithPayload(true)
	withVectors := qdrant.NewWithVectors(true)
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDStr(id)},
		WithPayload:    withPayload,
		WithVectors:    withVectors,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: retrieve: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}
	pt := pointFromRetrieved(points[0])
	if filter.SpaceID != "" && pt.Payload["space_id"] != filter.SpaceID {
		return nil, ErrNotFound
	}
	return pt, nil
}

func (s *QdrantStore) Search(ctx context.Context, vectorName string, vector []float32, limit int, filter Filter) ([]ScoredPoint, error) {
	withPayload := qdrant.NewWithPayload(true)
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         buildFilter(filter),
		Limit:          ptrUint64(uint64(limit)),
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	out := make([]ScoredPoint, 0, len(result))
	for _, r := range result {
		out = append(out, ScoredPoint{
			Point: Point{
				ID:      idString(r.GetId()),
				Payload: payloadToMap(r.GetPayload()),
			},
			Score: r.GetScore(),
		})
	}
	return out, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, filter Filter, limit int) ([]Point, error) {
	withPayload := qdrant.NewWithPayload(true)
	points, _, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filter),
		Limit:          ptrUint32(uint32(limit)),
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll: %w", err)
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		out = append(out, Point{
			ID:      idString(p.GetId()),
			Payload: payloadToMap(p.GetPayload()),
		})
	}
	return out, nil
}

func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDStr(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete: %w", err)
	}
	return nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: health check: %w", err)
	}
	return nil
}

func buildFilter(f Filter) *qdrant.Filter {
	if f.SpaceID == "" && len(f.Equals) == 0 {
		return nil
	}
	var must []*qdrant.Condition
	if f.SpaceID != "" {
		must = append(must, qdrant.NewMatch("space_id", f.SpaceID))
	}
	for k, v := range f.Equals {
		must = append(must, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: must}
}

func pointFromRetrieved(p *qdrant.RetrievedPoint) *Point {
	return &Point{
		ID:      idString(p.GetId()),
		Payload: payloadToMap(p.GetPayload()),
	}
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToGo(v)
	}
	return out
}

// valueToGo converts a Qdrant payload Value (a protobuf oneof) to a plain
// Go value. Struct and list values recurse; anything unrecognized is
// dropped rather than guessed at.
func valueToGo(v *qdrant.Value) any {
	switch {
	case v == nil:
		return nil
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetStructValue() != nil:
		fields := v.GetStructValue().GetFields()
		m := make(map[string]any, len(fields))
		for k, fv := range fields {
			m[k] = valueToGo(fv)
		}
		return m
	case v.GetListValue() != nil:
		values := v.GetListValue().GetValues()
		list := make([]any, len(values))
		for i, lv := range values {
			list[i] = valueToGo(lv)
		}
		return list
	case v.GetBoolValue():
		return true
	default:
		if v.GetIntegerValue() != 0 {
			return v.GetIntegerValue()
		}
		return v.GetDoubleValue()
	}
}

func ptrUint64(v uint64) *uint64 { return &v }
func ptrUint32(v uint32) *uint32 { return &v }
