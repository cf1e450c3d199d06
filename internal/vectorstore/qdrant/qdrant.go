package qdrant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"bimrag/internal/domain"
	"bimrag/internal/logger"
	"bimrag/internal/vectorstore"
)

const (
	fieldGlobalID    = "global_id"
	fieldElementType = "element_type"
	fieldOrdinal     = "ordinal"
	fieldText        = "text"
	fieldParams      = "params"

	scrollPageSize = 256
)

// pointNamespace seeds the name-based UUIDs derived from GlobalIDs, so the
// same element always maps to the same point.
var pointNamespace = uuid.MustParse("0d5a3e4c-8f0b-4c55-9a1e-6b7c2f1d9e30")

// pointsAPI is the subset of pb.PointsClient used here.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient used here.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config contains connection details for a Qdrant gRPC endpoint.
type Config struct {
	Addr       string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage persists element records as Qdrant points with cosine distance.
// The payload carries everything needed to rebuild a record; an ordinal
// field keeps the ingestion order.
type Storage struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	apiKey      string
	timeout     time.Duration
	log         *zap.Logger

	mu        sync.Mutex
	dimension int
	ordinals  map[string]int64
	next      int64
}

// New dials Qdrant at cfg.Addr.
func New(cfg Config, log *zap.Logger) (*Storage, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "dial qdrant %s", cfg.Addr)
	}
	s := newWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg, log)
	s.conn = conn
	return s, nil
}

func newWithClients(points pointsAPI, collections collectionsAPI, cfg Config, log *zap.Logger) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Storage{
		points:      points,
		collections: collections,
		collection:  cfg.Collection,
		apiKey:      cfg.APIKey,
		timeout:     timeout,
		log:         logger.OrNop(log).With(zap.String(logger.FieldBackend, "qdrant")),
		ordinals:    make(map[string]int64),
	}
}

func (s *Storage) Name() string { return "qdrant" }

func (s *Storage) rpc(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Init creates the collection if it does not exist. For an existing
// collection the stored ordinals are read back so re-upserted records keep
// their position.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.dimension = dimension
	s.ordinals = make(map[string]int64)
	s.next = 0
	s.mu.Unlock()

	if exists {
		records, ordinals, err := s.scrollAll(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		for i, r := range records {
			s.ordinals[r.GlobalID] = ordinals[i]
			if ordinals[i] >= s.next {
				s.next = ordinals[i] + 1
			}
		}
		s.mu.Unlock()
		return nil
	}

	rctx, cancel := s.rpc(ctx)
	defer cancel()
	_, err = s.collections.Create(rctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "create collection %s", s.collection)
	}
	s.log.Info("created collection", zap.String("collection", s.collection), zap.Int(logger.FieldDimension, dimension))
	return nil
}

func (s *Storage) collectionExists(ctx context.Context) (bool, error) {
	rctx, cancel := s.rpc(ctx)
	defer cancel()
	list, err := s.collections.List(rctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, errors.Wrap(err, "list collections")
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// PointID returns the point UUID for a GlobalID.
func PointID(globalID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(globalID)).String()
}

// Upsert stores records as points, waiting for the write to be applied.
func (s *Storage) Upsert(ctx context.Context, records []domain.ElementRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim == 0 {
		return errors.New("qdrant storage not initialized")
	}
	if err := vectorstore.CheckDimension(records, dim); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i := range records {
		r := &records[i]
		params, err := vectorstore.EncodeParams(r.Params)
		if err != nil {
			return errors.Wrapf(err, "record %s", r.GlobalID)
		}
		vec := make([]float32, len(r.Embedding))
		for j, x := range r.Embedding {
			vec[j] = float32(x)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.GlobalID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: map[string]*pb.Value{
				fieldGlobalID:    stringValue(r.GlobalID),
				fieldElementType: stringValue(string(r.Type)),
				fieldOrdinal:     {Kind: &pb.Value_IntegerValue{IntegerValue: s.ordinal(r.GlobalID)}},
				fieldText:        stringValue(r.Text),
				fieldParams:      stringValue(params),
			},
		}
	}

	rctx, cancel := s.rpc(ctx)
	defer cancel()
	wait := true
	_, err := s.points.Upsert(rctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return errors.Wrapf(err, "upsert %d points", len(records))
	}
	s.log.Debug("upserted points", zap.Int(logger.FieldCount, len(points)))
	return nil
}

func (s *Storage) ordinal(globalID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.ordinals[globalID]; ok {
		return o
	}
	o := s.next
	s.ordinals[globalID] = o
	s.next++
	return o
}

// Load scrolls through the collection and returns records by ordinal.
// Vectors come back as float32, so embeddings lose precision beyond that.
func (s *Storage) Load(ctx context.Context) ([]domain.ElementRecord, error) {
	records, _, err := s.scrollAll(ctx)
	return records, err
}

func (s *Storage) scrollAll(ctx context.Context) ([]domain.ElementRecord, []int64, error) {
	type loaded struct {
		rec     domain.ElementRecord
		ordinal int64
	}
	var all []loaded
	limit := uint32(scrollPageSize)
	var offset *pb.PointId
	for {
		rctx, cancel := s.rpc(ctx)
		resp, err := s.points.Scroll(rctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		cancel()
		if err != nil {
			return nil, nil, errors.Wrap(err, "scroll points")
		}
		for _, p := range resp.GetResult() {
			rec, ord, err := decodePoint(p)
			if err != nil {
				return nil, nil, err
			}
			all = append(all, loaded{rec: rec, ordinal: ord})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ordinal < all[j].ordinal })
	records := make([]domain.ElementRecord, len(all))
	ordinals := make([]int64, len(all))
	for i, l := range all {
		records[i] = l.rec
		ordinals[i] = l.ordinal
	}
	return records, ordinals, nil
}

func decodePoint(p *pb.RetrievedPoint) (domain.ElementRecord, int64, error) {
	payload := p.GetPayload()
	id := payload[fieldGlobalID].GetStringValue()
	if id == "" {
		return domain.ElementRecord{}, 0, errors.Newf("point %s has no %s payload", p.GetId().GetUuid(), fieldGlobalID)
	}
	t := domain.ElementType(payload[fieldElementType].GetStringValue())
	params, err := vectorstore.DecodeParams(t, payload[fieldParams].GetStringValue())
	if err != nil {
		return domain.ElementRecord{}, 0, errors.Wrapf(err, "point %s", id)
	}
	raw := p.GetVectors().GetVector().GetData()
	if len(raw) == 0 {
		raw = p.GetVectors().GetVector().GetDense().GetData()
	}
	vec := make([]float64, len(raw))
	for i, x := range raw {
		vec[i] = float64(x)
	}
	return domain.ElementRecord{
		GlobalID:  id,
		Type:      t,
		Params:    params,
		Text:      payload[fieldText].GetStringValue(),
		Embedding: vec,
	}, payload[fieldOrdinal].GetIntegerValue(), nil
}

// Clear drops the collection. Init must be called again before Upsert.
func (s *Storage) Clear(ctx context.Context) error {
	rctx, cancel := s.rpc(ctx)
	defer cancel()
	if _, err := s.collections.Delete(rctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return errors.Wrapf(err, "delete collection %s", s.collection)
	}
	s.mu.Lock()
	s.dimension = 0
	s.ordinals = make(map[string]int64)
	s.next = 0
	s.mu.Unlock()
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Storage) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func stringValue(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}
