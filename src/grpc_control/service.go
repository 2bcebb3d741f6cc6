package grpc_control

import (
	"context"
	"fmt"
	"net"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlService lets operators steer the running dashboard.
type ControlService struct {
	Markets interfaces.ITickerController
	Candles interfaces.ISymbolSelector
	Logger  *logger.Logger
}

func NewControlService(markets interfaces.ITickerController, candles interfaces.ISymbolSelector, log *logger.Logger) *ControlService {
	return &ControlService{
		Markets: markets,
		Candles: candles,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) SelectSymbol(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if err := s.Candles.SelectSymbol(req.GetValue()); err != nil {
		if helpers.IsValidationError(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	symbol := s.Candles.Symbol()
	s.Logger.Info("gRPC: selected %s", symbol)
	return wrapperspb.String(symbol), nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) RestartTicker(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	s.Markets.RestartStream()
	s.Logger.Info("gRPC: ticker stream restart requested")
	return &emptypb.Empty{}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	markets := s.Markets.Latest()
	candles := s.Candles.Latest()

	out, err := structpb.NewStruct(map[string]any{
		"ticker":  statusMap(s.Markets.Status()),
		"klines":  statusMap(s.Candles.Status()),
		"symbol":  s.Candles.Symbol(),
		"markets": len(markets.Records),
		"candles": len(candles.Candles),
		"loading": markets.Loading || candles.Loading,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func statusMap(st models.MStreamStatus) map[string]any {
	return map[string]any{
		"name":      st.Name,
		"state":     st.State,
		"label":     st.Label,
		"symbol":    st.Symbol,
		"lastError": st.LastError,
	}
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Serve registers the service on a fresh grpc.Server and serves lis until the
// server is stopped.
func Serve(lis net.Listener, svc *ControlService, log *logger.Logger) (*grpc.Server, <-chan error) {
	grpcServer := grpc.NewServer()
	RegisterControlServer(grpcServer, svc)

	errs := make(chan error, 1)
	go func() {
		log.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			errs <- fmt.Errorf("serve gRPC: %w", err)
		}
		close(errs)
	}()
	return grpcServer, errs
}
