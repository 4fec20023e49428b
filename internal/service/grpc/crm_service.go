// Package grpcsvc реализует gRPC API CRM.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// IdempotencyKeyHeader - ключ метаданных для идемпотентных мутаций.
const IdempotencyKeyHeader = "idempotency-key"

// CRMService реализует CRMServer поверх api.Endpoint.
type CRMService struct {
	endpoint *api.Endpoint
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

var _ CRMServer = (*CRMService)(nil)

// NewCRMService создаёт сервис; idemRepo может быть nil, тогда ключи идемпотентности игнорируются.
func NewCRMService(endpoint *api.Endpoint, idemRepo domain.IdempotencyRepository, logger *log.Entry) *CRMService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CRMService{
		endpoint: endpoint,
		idemRepo: idemRepo,
		logger:   logger.WithField("component", "crm-grpc"),
	}
}

// CreateCustomer выполняет мутацию с учётом Idempotency-Key из metadata.
func (s *CRMService) CreateCustomer(ctx context.Context, req *api.CreateCustomerRequest) (*api.CreateCustomerResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, MethodCreateCustomer, req,
		func() *api.CreateCustomerResponse { return &api.CreateCustomerResponse{} },
		func(ctx context.Context) (*api.CreateCustomerResponse, error) {
			resp := s.endpoint.CreateCustomer(ctx, *req)
			return &resp, nil
		},
	)
}

// BulkCreateCustomers выполняет пакетное создание с учётом Idempotency-Key.
func (s *CRMService) BulkCreateCustomers(ctx context.Context, req *api.BulkCreateCustomersRequest) (*api.BulkCreateCustomersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, MethodBulkCreateCustomers, req,
		func() *api.BulkCreateCustomersResponse { return &api.BulkCreateCustomersResponse{} },
		func(ctx context.Context) (*api.BulkCreateCustomersResponse, error) {
			resp := s.endpoint.BulkCreateCustomers(ctx, *req)
			return &resp, nil
		},
	)
}

// CreateProduct выполняет мутацию с учётом Idempotency-Key.
func (s *CRMService) CreateProduct(ctx context.Context, req *api.CreateProductRequest) (*api.CreateProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, MethodCreateProduct, req,
		func() *api.CreateProductResponse { return &api.CreateProductResponse{} },
		func(ctx context.Context) (*api.CreateProductResponse, error) {
			resp := s.endpoint.CreateProduct(ctx, *req)
			return &resp, nil
		},
	)
}

// CreateOrder выполняет мутацию с учётом Idempotency-Key.
func (s *CRMService) CreateOrder(ctx context.Context, req *api.CreateOrderRequest) (*api.CreateOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, MethodCreateOrder, req,
		func() *api.CreateOrderResponse { return &api.CreateOrderResponse{} },
		func(ctx context.Context) (*api.CreateOrderResponse, error) {
			resp := s.endpoint.CreateOrder(ctx, *req)
			return &resp, nil
		},
	)
}

// ListCustomers возвращает клиентов.
func (s *CRMService) ListCustomers(ctx context.Context, req *api.ListCustomersRequest) (*api.ListCustomersResponse, error) {
	if req == nil {
		req = &api.ListCustomersRequest{}
	}
	resp, err := s.endpoint.ListCustomers(ctx, *req)
	if err != nil {
		return nil, s.readError(MethodListCustomers, err)
	}
	return &resp, nil
}

// ListProducts возвращает товары.
func (s *CRMService) ListProducts(ctx context.Context, req *api.ListProductsRequest) (*api.ListProductsResponse, error) {
	if req == nil {
		req = &api.ListProductsRequest{}
	}
	resp, err := s.endpoint.ListProducts(ctx, *req)
	if err != nil {
		return nil, s.readError(MethodListProducts, err)
	}
	return &resp, nil
}

// ListOrders возвращает заказы.
func (s *CRMService) ListOrders(ctx context.Context, req *api.ListOrdersRequest) (*api.ListOrdersResponse, error) {
	if req == nil {
		req = &api.ListOrdersRequest{}
	}
	resp, err := s.endpoint.ListOrders(ctx, *req)
	if err != nil {
		return nil, s.readError(MethodListOrders, err)
	}
	return &resp, nil
}

// GetSummary возвращает сводку CRM.
func (s *CRMService) GetSummary(ctx context.Context, _ *api.SummaryRequest) (*api.SummaryResponse, error) {
	resp, err := s.endpoint.Summary(ctx, api.SummaryRequest{})
	if err != nil {
		return nil, s.readError(MethodGetSummary, err)
	}
	return &resp, nil
}

// readError переводит ошибку чтения в gRPC-статус: некорректный фильтр - InvalidArgument, остальное - Internal.
func (s *CRMService) readError(method string, err error) error {
	messages := strings.Join(domain.ErrorMessages(err), "; ")
	if domain.KindOf(err) == domain.KindValidation {
		return status.Error(codes.InvalidArgument, messages)
	}
	s.logger.WithError(err).WithField("method", method).Error("crm read failed")
	return status.Error(codes.Internal, messages)
}

func withIdempotency[T any](
	s *CRMService,
	ctx context.Context,
	method string,
	req any,
	newResp func() T,
	handler func(context.Context) (T, error),
) (T, error) {
	var zero T

	if s.idemRepo == nil {
		return handler(ctx)
	}
	idemKey, ok := readIdempotencyKey(ctx)
	if !ok {
		return handler(ctx)
	}

	reqHash, err := api.RequestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, idemKey, reqHash, time.Now().UTC().Add(api.IdempotencyTTL))
	if err != nil {
		return replayIdempotency(s, err, record, newResp)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.cacheIdempotencyFailure(ctx, idemKey, runErr)
		return resp, runErr
	}

	if cacheErr := s.cacheIdempotencySuccess(ctx, idemKey, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
	}
	return resp, nil
}

func replayIdempotency[T any](
	s *CRMService,
	createErr error,
	record domain.IdempotencyRecord,
	newResp func() T,
) (T, error) {
	var zero T

	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return zero, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return zero, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := newResp()
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return zero, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return zero, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return zero, decodeIdempotencyFailure(record)
		default:
			return zero, status.Error(codes.Internal, "unknown idempotency record status")
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func (s *CRMService) cacheIdempotencySuccess(ctx context.Context, key string, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(ctx, key, data, int(codes.OK))
}

func (s *CRMService) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(api.ErrorPayload{Code: int(code), Message: st.Message()})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}
	if err := s.idemRepo.MarkFailed(ctx, key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	if len(record.ResponseBody) > 0 {
		var payload api.ErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(payload.Code); ok {
				if code == codes.OK {
					code = codes.Internal
				}
				if payload.Message == "" {
					payload.Message = fallback
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if code, ok := grpcCode(record.HTTPStatus); ok && code != codes.OK {
		return status.Error(code, fallback)
	}
	return status.Error(codes.Internal, fallback)
}

func grpcCode(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

// readIdempotencyKey возвращает ключ из входящих метаданных; ok=false, если ключа нет.
func readIdempotencyKey(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, value := range md.Get(IdempotencyKeyHeader) {
		if key := strings.TrimSpace(value); key != "" {
			return key, true
		}
	}
	return "", false
}
