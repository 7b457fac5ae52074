package lifecycle

import (
	"cidrvend/internal/utils"
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	errMissingCidrBlock = errors.New("cidrBlock is required together with vpcId")
	errUnknownRequest   = errors.New("unknown request type")
)

func NewHandler(client VendingClient, responder Responder, logs *zap.Logger) *Handler {
	return &Handler{
		client:    client,
		responder: responder,
		logs:      logs,
	}
}

// Handler turns one lifecycle event into at most one allocation service
// call and exactly one response.
type Handler struct {
	client    VendingClient
	responder Responder
	logs      *zap.Logger
}

// Handle processes req and delivers the outcome to req.ResponseURL. The
// returned error only reports a failed delivery.
func (h *Handler) Handle(ctx context.Context, req Request) error {
	logs := h.logs.With(zap.String("trace_id", utils.NewTraceId()), zap.String("request_id", req.RequestId))

	resp := h.Process(ctx, logs, req)
	if err := h.responder.Send(ctx, req.ResponseURL, resp); err != nil {
		logs.Error("failed to deliver response", zap.String("status", resp.Status), zap.Error(err))
		return err
	}
	logs.Info("response delivered", zap.String("status", resp.Status))
	return nil
}

// Process computes the response for req. Any error or panic yields FAILED
// with no data.
func (h *Handler) Process(ctx context.Context, logs *zap.Logger, req Request) (resp Response) {
	resp = Response{
		PhysicalResourceId: PhysicalResourceId,
		StackId:            req.StackId,
		RequestId:          req.RequestId,
		LogicalResourceId:  req.LogicalResourceId,
		Data:               map[string]string{},
	}

	defer func() {
		if r := recover(); r != nil {
			logs.Error("lifecycle handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp.Status = StatusFailed
			resp.Reason = reason(fmt.Sprintf("internal error: %v", r))
			resp.Data = map[string]string{}
		}
	}()

	logs.Info("input event",
		zap.String("request_type", req.RequestType),
		zap.String("logical_resource_id", req.LogicalResourceId),
		zap.String("vpc_id", req.ResourceProperties.VpcId),
		zap.String("cidr_block", req.ResourceProperties.CidrBlock))

	data, err := h.dispatch(ctx, logs, req)
	if err != nil {
		logs.Error("lifecycle event failed", zap.Error(err))
		resp.Status = StatusFailed
		resp.Reason = reason(err.Error())
		return resp
	}

	resp.Status = StatusSuccess
	resp.Reason = reason("")
	if data != nil {
		resp.Data = data
	}
	return resp
}

func (h *Handler) dispatch(ctx context.Context, logs *zap.Logger, req Request) (map[string]string, error) {
	props := req.ResourceProperties

	switch req.RequestType {
	case RequestCreate, RequestUpdate:
		if props.VpcId == "" {
			data, err := h.client.Allocate(ctx)
			if err != nil {
				return nil, err
			}
			logs.Info("http_response", zap.Any("data", data))
			return data, nil
		}
		if props.CidrBlock == "" {
			return nil, errMissingCidrBlock
		}
		data, err := h.client.Bind(ctx, props.CidrBlock, props.VpcId)
		if err != nil {
			return nil, err
		}
		logs.Info("http_response", zap.Any("data", data))
		return data, nil

	case RequestDelete:
		if props.VpcId == "" {
			// nothing was ever bound, nothing to release
			return nil, nil
		}
		if props.CidrBlock == "" {
			return nil, errMissingCidrBlock
		}
		err := h.client.Release(ctx, props.CidrBlock)
		if IsNotFound(err) {
			logs.Info("block already released", zap.String("cidr_block", props.CidrBlock))
			return nil, nil
		}
		return nil, err

	default:
		return nil, errors.Wrapf(errUnknownRequest, "%q", req.RequestType)
	}
}

func reason(msg string) string {
	stream := "See the details in CloudWatch Log Stream: " + lambdacontext.LogStreamName
	if lambdacontext.LogStreamName == "" {
		stream = ""
	}
	switch {
	case msg == "":
		return stream
	case stream == "":
		return msg
	default:
		return msg + ". " + stream
	}
}
