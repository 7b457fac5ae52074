package http

import (
	"cidrvend/internal/api/http/identity"
	"cidrvend/internal/api/http/logger"
	apimodel "cidrvend/internal/api/http/utils"
	"cidrvend/internal/core/vending"
	"cidrvend/internal/ipam"
	"net/http"
	"strings"
)

func NewRequestHandler(serviceHandler vending.VendingServiceHandler) *RequestHandler {
	return &RequestHandler{
		serviceHandler: serviceHandler,
	}
}

type RequestHandler struct {
	serviceHandler vending.VendingServiceHandler
}

// AllocateBlock godoc
// @Summary Allocate a block
// @Description allocate the first free block of the master pool to the caller
// @Tags vpc
// @Produce json
// @Param region query string true "Region of the consuming VPC"
// @Success 200 {object} BlockRecord
// @Failure 401 {object} ApiResponse
// @Failure 409 {object} ApiResponse
// @Router /vpc [post]
func (h *RequestHandler) AllocateBlock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	region, ok := h.requireQuery(w, r, paramRegion)
	if !ok {
		return
	}
	logger.SetTarget(r.Context(), logger.Target{Region: region})

	// service: allocate
	rec, err := h.serviceHandler.Allocate(r.Context(), vending.ServiceAllocateModel{
		OwnerId: owner,
		Region:  region,
	})
	if err != nil {
		if ipam.KindOf(err) == ipam.KindExhausted {
			logger.SetAction(r.Context(), "vpc.allocate.exhausted")
		}
		h.respondError(w, r, err)
		return
	}

	logger.SetTarget(r.Context(), logger.Target{BlockCidr: rec.BlockCidr})
	apimodel.WriteJson(w, http.StatusOK, rec)
}

// BindBlock godoc
// @Summary Bind a block
// @Description record the VPC consuming a block owned by the caller
// @Tags vpc
// @Produce json
// @Param cidr_block query string true "Allocated block"
// @Param vpc_id query string true "VPC id"
// @Success 200 {object} BlockRecord
// @Failure 404 {object} ApiResponse
// @Failure 412 {object} ApiResponse
// @Router /vpc [patch]
func (h *RequestHandler) BindBlock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	block, ok := h.requireQuery(w, r, paramCidrBlock)
	if !ok {
		return
	}
	vpcId, ok := h.requireQuery(w, r, paramVpcId)
	if !ok {
		return
	}
	logger.SetTarget(r.Context(), logger.Target{BlockCidr: block, ResourceId: vpcId})

	// service: bind
	rec, err := h.serviceHandler.Bind(r.Context(), vending.ServiceBindModel{
		OwnerId:    owner,
		BlockCidr:  block,
		ResourceId: vpcId,
	})
	if err != nil {
		if ipam.KindOf(err) == ipam.KindOwnershipMismatch {
			logger.SetAction(r.Context(), "vpc.bind.denied")
		}
		h.respondError(w, r, err)
		return
	}

	apimodel.WriteJson(w, http.StatusOK, rec)
}

// ReleaseBlock godoc
// @Summary Release a block
// @Description delete the allocation record of a block owned by the caller
// @Tags vpc
// @Produce json
// @Param cidr_block query string true "Allocated block"
// @Success 200 {object} object
// @Failure 404 {object} ApiResponse
// @Failure 412 {object} ApiResponse
// @Router /vpc [delete]
func (h *RequestHandler) ReleaseBlock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	block, ok := h.requireQuery(w, r, paramCidrBlock)
	if !ok {
		return
	}
	logger.SetTarget(r.Context(), logger.Target{BlockCidr: block})

	// service: release
	err := h.serviceHandler.Release(r.Context(), vending.ServiceReleaseModel{
		OwnerId:   owner,
		BlockCidr: block,
	})
	if err != nil {
		if ipam.KindOf(err) == ipam.KindOwnershipMismatch {
			logger.SetAction(r.Context(), "vpc.release.denied")
		}
		h.respondError(w, r, err)
		return
	}

	apimodel.WriteJson(w, http.StatusOK, struct{}{})
}

// LookupBlock godoc
// @Summary Get a block
// @Description return the record of a block owned by the caller
// @Tags vpc
// @Produce json
// @Param cidr_block query string true "Allocated block"
// @Success 200 {object} BlockRecord
// @Failure 404 {object} ApiResponse
// @Failure 412 {object} ApiResponse
// @Router /vpc [get]
func (h *RequestHandler) LookupBlock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	block, ok := h.requireQuery(w, r, paramCidrBlock)
	if !ok {
		return
	}
	logger.SetTarget(r.Context(), logger.Target{BlockCidr: block})

	rec, err := h.serviceHandler.Lookup(r.Context(), vending.ServiceLookupModel{
		OwnerId:   owner,
		BlockCidr: block,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	apimodel.WriteJson(w, http.StatusOK, rec)
}

// Healthz godoc
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} ApiResponse
// @Router /healthz [get]
func (h *RequestHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	apimodel.RespondSuccess(w, http.StatusOK, "ok", nil)
}

func (h *RequestHandler) requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		logger.SetReason(r.Context(), "no authenticated identity")
		apimodel.RespondFail(w, http.StatusUnauthorized, "authenticated identity required", nil)
		return "", false
	}
	return acct, true
}

func (h *RequestHandler) requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		logger.SetReason(r.Context(), "missing "+name)
		apimodel.RespondFail(w, http.StatusBadRequest, "missing query parameter: "+name, nil)
		return "", false
	}
	return v, true
}

func (h *RequestHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ipam.KindOf(err)
	logger.SetReason(r.Context(), err.Error())
	logger.PutExtra(r.Context(), "error_kind", kind.String())
	apimodel.RespondFail(w, statusForKind(kind), err.Error(), nil)
}

func statusForKind(kind ipam.Kind) int {
	switch kind {
	case ipam.KindInvalidRequest:
		return http.StatusBadRequest
	case ipam.KindNotFound:
		return http.StatusNotFound
	case ipam.KindExhausted:
		return http.StatusConflict
	case ipam.KindOwnershipMismatch:
		return http.StatusPreconditionFailed
	case ipam.KindTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
