package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/edgemeter/internal/aggregation"
	"github.com/tejusbharadwaj/edgemeter/internal/database"
	middleware "github.com/tejusbharadwaj/edgemeter/internal/grpc/middlewares"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int           // Size of the LRU cache
	CacheTTL       time.Duration // Lifetime of a cached response
	RateLimit      float64       // Requests per second
	RateLimitBurst int           // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		CacheTTL:       30 * time.Second,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

// ZoneLookup resolves the configured timezone of a device.
type ZoneLookup interface {
	Location(ctx context.Context, device string) *time.Location
}

// QueryService serves stored readings and the values derived from them.
type QueryService struct {
	repository database.Repository
	zones      ZoneLookup
	engine     *aggregation.Engine
	validator  *RequestValidator
}

// NewQueryService creates a new service instance
func NewQueryService(repo database.Repository, zones ZoneLookup) *QueryService {
	return &QueryService{
		repository: repo,
		zones:      zones,
		engine:     aggregation.NewEngine(),
		validator:  NewRequestValidator(),
	}
}

// ReadRange returns the raw readings of a device in [from, to].
func (s *QueryService) ReadRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.rangeRequest(req)
	if err != nil {
		return nil, err
	}

	ms, err := s.repository.ReadRange(ctx, r.Device, r.From, r.To, r.Channels)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	return respond("measurements", nonNil(ms))
}

// ReadYearlyRange returns the readings of one year from the yearly shard.
func (s *QueryService) ReadYearlyRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validator.ValidateYear(r.Device, r.Year); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validator.ValidateChannels(r.Channels); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ms, err := s.repository.ReadYearlyRange(ctx, r.Device, r.Year, r.Channels)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	return respond("measurements", nonNil(ms))
}

// Aggregate reads the range and returns bucketed consumption diffs.
func (s *QueryService) Aggregate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.rangeRequest(req)
	if err != nil {
		return nil, err
	}
	granularity, err := s.validator.ValidateGranularity(r.Granularity)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ms, err := s.repository.ReadRange(ctx, r.Device, r.From, r.To, r.Channels)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}

	records := s.engine.Aggregate(ms, s.zones.Location(ctx, r.Device), granularity, r.IncludeBaseline)
	return respond("records", nonNil(records))
}

// Summarize reads the range and returns per-channel sums and averages of
// hourly diffs.
func (s *QueryService) Summarize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.rangeRequest(req)
	if err != nil {
		return nil, err
	}

	ms, err := s.repository.ReadRange(ctx, r.Device, r.From, r.To, r.Channels)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}

	summaries := s.engine.Summarize(ms, s.zones.Location(ctx, r.Device))
	return respond("summaries", summaries)
}

func (s *QueryService) rangeRequest(req *structpb.Struct) (rangeRequest, error) {
	r, err := decodeRequest(req)
	if err != nil {
		return r, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validator.ValidateRange(r.Device, r.From, r.To); err != nil {
		return r, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validator.ValidateChannels(r.Channels); err != nil {
		return r, status.Error(codes.InvalidArgument, err.Error())
	}
	return r, nil
}

func respond(key string, v interface{}) (*structpb.Struct, error) {
	out, err := encodeResponse(key, v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// gRPC Server Configuration without the middleware (for development and debug only)
func ConfigureGRPCServer(
	repo database.Repository,
	zones ZoneLookup,
	opts ...grpc.ServerOption,
) *grpc.Server {
	srv := grpc.NewServer(opts...)
	RegisterQueryServiceServer(srv, NewQueryService(repo, zones))
	return srv
}

// SetupServer initializes and configures the gRPC server with all middleware.
// Request metrics are registered with reg.
func SetupServer(
	repo database.Repository,
	zones ZoneLookup,
	config ServerConfig,
	logger logrus.FieldLogger,
	reg prometheus.Registerer,
) (*grpc.Server, *HealthChecker, error) {
	cache, err := middleware.NewCache(config.CacheSize, config.CacheTTL, "/"+QueryServiceName+"/")
	if err != nil {
		return nil, nil, err
	}

	requests, latency := middleware.NewRequestMetrics(reg)

	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst,
					"/"+grpc_health_v1.Health_ServiceDesc.ServiceName+"/"),
				middleware.NewLoggingInterceptor(logger),
				middleware.NewMetricsInterceptor(requests, latency),
				cache.Interceptor, // Cache last to avoid caching errors
			),
		),
	)

	RegisterQueryServiceServer(server, NewQueryService(repo, zones))

	health := NewHealthChecker()
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	health.SetServingStatus(QueryServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, health)

	return server, health, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}

var _ QueryServiceServer = (*QueryService)(nil)
