package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/features"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// HTTPOptions configures the HTTP facade.
type HTTPOptions struct {
	// RequestTimeout bounds each predict call. Zero disables the deadline.
	RequestTimeout time.Duration
	// Artifacts is reported on /schema.
	Artifacts []artifacts.Info
}

type httpHandler struct {
	logger  *slog.Logger
	svc     PredictorServer
	timeout time.Duration
	schema  gin.H
}

// NewHTTPHandler exposes svc over JSON and form-encoded HTTP routes.
func NewHTTPHandler(logger *slog.Logger, svc PredictorServer, opts HTTPOptions) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{
		logger:  logger,
		svc:     svc,
		timeout: opts.RequestTimeout,
		schema:  schemaBody(opts.Artifacts),
	}

	router := gin.New()
	router.Use(httpRecovery(logger))

	router.POST("/hr/predict", h.predictJSON)
	router.POST("/predict", h.predictForm)
	router.GET("/healthz", h.health)
	router.GET("/schema", h.getSchema)
	return router
}

func schemaBody(infos []artifacts.Info) gin.H {
	levels := gin.H{}
	for _, field := range features.RequiredFields() {
		if lv, ok := features.Levels(field); ok {
			levels[field] = lv
		}
	}
	if infos == nil {
		infos = []artifacts.Info{}
	}
	return gin.H{
		"columns":   features.GoldenColumns(),
		"required":  features.RequiredFields(),
		"optional":  features.OptionalFields(),
		"levels":    levels,
		"artifacts": infos,
	}
}

func (h *httpHandler) predictJSON(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	req, err := FromJSONBody(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.predict(c, req)
}

func (h *httpHandler) predictForm(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		badRequest(c, err)
		return
	}
	h.predict(c, FromFormValues(c.Request.PostForm))
}

func (h *httpHandler) predict(c *gin.Context, req *structpb.Struct) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.svc.Predict(ctx, req)
	if err != nil {
		handleError(c, err)
		return
	}

	jsonBytes, err := protojson.Marshal(resp)
	if err != nil {
		h.logger.Error("failed to marshal prediction", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize response"})
		return
	}
	c.Data(http.StatusOK, "application/json", jsonBytes)
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
}

func (h *httpHandler) getSchema(c *gin.Context) {
	c.JSON(http.StatusOK, h.schema)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
		"kind":  string(utils.KindValidation),
	})
}

// handleError converts gRPC errors into HTTP responses, carrying the error kind
// and field from the status ErrorInfo when present.
func handleError(c *gin.Context, err error) {
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			st = status.New(codes.DeadlineExceeded, err.Error())
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	body := gin.H{
		"error": st.Message(),
		"code":  st.Code().String(),
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			body["kind"] = info.GetReason()
			if field := info.GetMetadata()["field"]; field != "" {
				body["field"] = field
			}
		}
	}
	c.JSON(HTTPStatusFromCode(st.Code()), body)
}

// HTTPStatusFromCode maps gRPC codes onto HTTP statuses. FailedPrecondition is a
// deployment fault here, so it is reported as a server error.
func HTTPStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// httpRecovery turns panics into 500 responses.
func httpRecovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in http handler",
					slog.String("path", c.FullPath()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
