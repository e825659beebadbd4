package api

import (
	"errors"
	"net/http"
	"time"

	models "StockCast/internal/domain/models"
	domservice "StockCast/internal/domain/service"
	"StockCast/internal/services/forecast"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
	"StockCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler exposes the forecast API over Echo.
type ForecastEchoHandler struct {
	logger     *xlogger.Logger
	forecaster domservice.Forecaster
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecaster domservice.Forecaster) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, forecaster: forecaster}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.POST("/train", h.Train)
	g.GET("/model", h.ModelInfo)
	g.GET("/history", h.History)
	e.GET("/healthz", h.Health)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecaster.Forecast(c.Request().Context(), req.Symbol, req.Horizon, req.Refresh)
	if err != nil {
		h.logger.Error("forecast usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecaster.Train(c.Request().Context(), req.Symbol, req)
	if err != nil {
		h.logger.Error("train usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) ModelInfo(c echo.Context) error {
	req := &models.ModelInfoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecaster.ModelInfo(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("model info usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from := util.ParseTimeDefault(req.From, time.Time{})
	to := util.ParseTimeDefault(req.To, time.Time{})

	res, err := h.forecaster.History(c.Request().Context(), req.Symbol, from, to, req.Timeframe, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// mapDomainError translates typed forecast errors into HTTP-aware
// application errors. Anything unrecognized surfaces as 500.
func mapDomainError(err error) error {
	var (
		notTrained   *forecast.ModelNotTrainedError
		insufficient *forecast.InsufficientDataError
		mismatch     *forecast.FeatureMismatchError
		failed       *forecast.TrainingFailedError
		artifactIO   *forecast.ArtifactIOError
	)
	switch {
	case errors.As(err, &notTrained):
		return xhttp.NewAppError("ERR_MODEL_NOT_TRAINED", "symbol", notTrained.Error(), http.StatusNotFound).WithError(err)
	case errors.As(err, &insufficient):
		return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", insufficient.Error(), http.StatusUnprocessableEntity).
			WithParam("have", insufficient.Have).
			WithParam("need", insufficient.Need).
			WithError(err)
	case errors.As(err, &mismatch):
		return xhttp.NewAppError("ERR_FEATURE_MISMATCH", "", mismatch.Error(), http.StatusConflict).
			WithParam("missing", mismatch.Missing).
			WithError(err)
	case errors.Is(err, forecast.ErrTrainingInProgress):
		return xhttp.NewAppError("ERR_TRAINING_IN_PROGRESS", "symbol", err.Error(), http.StatusConflict).WithError(err)
	case errors.As(err, &failed):
		return xhttp.InternalError(failed.Error()).WithError(err)
	case errors.As(err, &artifactIO):
		return xhttp.NewAppError("ERR_ARTIFACT_IO", "", artifactIO.Error(), http.StatusInternalServerError).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
