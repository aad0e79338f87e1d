package grpcserver

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/cancer-check/internal/auth"
	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/imageprocessor"
	"github.com/example/cancer-check/internal/logging"
	"github.com/example/cancer-check/internal/usecase"
)

// MaxImageSize bounds the accepted image payload in bytes.
const MaxImageSize = 8 << 20

// Analyzer is the use case surface the gRPC layer depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req usecase.AnalysisRequest) (*usecase.Analysis, error)
}

type analyzerService struct {
	uc     Analyzer
	logger *zap.Logger
}

// New builds a gRPC server with the Analyzer and health services registered.
// verifier may be nil to serve without authentication.
func New(uc Analyzer, verifier *auth.Verifier, logger *zap.Logger) *grpc.Server {
	logger = logger.Named("grpc")
	interceptors := []grpc.UnaryServerInterceptor{
		recoveryInterceptor(logger),
		loggingInterceptor(logger),
	}
	if verifier != nil {
		interceptors = append(interceptors, verifier.UnaryServerInterceptor())
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(MaxImageSize+1024),
	)
	RegisterAnalyzerServer(server, &analyzerService{uc: uc, logger: logger})

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	return server
}

func (s *analyzerService) Analyze(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	image := in.GetValue()
	if len(image) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}
	if len(image) > MaxImageSize {
		return nil, status.Error(codes.InvalidArgument, "image too large")
	}
	if !imageprocessor.IsImage(image) {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported content type %s", imageprocessor.Sniff(image))
	}

	callerID, _ := auth.CallerID(ctx)
	analysis, err := s.uc.Analyze(ctx, usecase.AnalysisRequest{
		CallerID:  callerID,
		ImageName: "grpc-upload",
		Image:     image,
	})
	if err != nil {
		return nil, status.Error(codeFor(err), logging.Cause(err).Error())
	}

	doc := map[string]interface{}{
		"request_id":        analysis.RequestID,
		"sha1":              analysis.ImageDigest,
		"decision":          analysis.Decision.Kind.String(),
		"message":           analysis.Decision.Message,
		"inference_time_ms": analysis.Result.InferenceTime.Milliseconds(),
	}
	classifications := make([]interface{}, 0, len(analysis.Result.Classifications))
	for _, c := range analysis.Result.Classifications {
		classifications = append(classifications, map[string]interface{}{
			"label": c.Label,
			"score": float64(c.Score),
		})
	}
	doc["classifications"] = classifications
	if f := analysis.Decision.Finding; analysis.Decision.Kind == decision.Positive && f != nil {
		doc["label"] = f.Label
		doc["score"] = float64(f.Score)
		doc["summary"] = f.Summary()
	}

	out, err := structpb.NewStruct(doc)
	if err != nil {
		s.logger.Error("failed to encode analysis", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode analysis")
	}
	return out, nil
}

func codeFor(err error) codes.Code {
	var procErr *classifier.ImageProcessingError
	switch {
	case errors.Is(err, classifier.ErrModelInitialization):
		return codes.Unavailable
	case errors.As(err, &procErr):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func recoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}
