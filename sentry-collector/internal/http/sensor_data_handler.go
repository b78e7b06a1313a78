package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"go.uber.org/zap"
)

// SensorDataHandler serves /user/sensor-data and its sub-resources.
// All routes expect RequireSession to have run.
type SensorDataHandler struct {
	svc           service.SensorDataService
	defaultWindow time.Duration
	logger        *zap.Logger
}

func NewSensorDataHandler(svc service.SensorDataService, defaultWindow time.Duration, logger *zap.Logger) *SensorDataHandler {
	return &SensorDataHandler{svc: svc, defaultWindow: defaultWindow, logger: logger}
}

// sensorDataRequest uses pointers so missing fields can be told apart from zero.
type sensorDataRequest struct {
	Type  *string  `json:"type"`
	Value *float64 `json:"value"`
}

type ownerView struct {
	Email string `json:"email"`
}

type dataPointView struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Value     float64    `json:"value"`
	CreatedAt time.Time  `json:"createdAt"`
	OwnerID   *string    `json:"ownerId"`
	Owner     *ownerView `json:"owner"`
}

func toView(dp *domain.DataPoint) dataPointView {
	v := dataPointView{ID: dp.ID, Type: dp.Type, Value: dp.Value, CreatedAt: dp.CreatedAt}
	if dp.OwnerID != "" {
		id := dp.OwnerID
		v.OwnerID = &id
	}
	if dp.OwnerEmail != "" {
		v.Owner = &ownerView{Email: dp.OwnerEmail}
	}
	return v
}

func (h *SensorDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/user/sensor-data":
		switch r.Method {
		case http.MethodPost:
			h.Create(w, r)
		case http.MethodGet:
			h.List(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "/user/sensor-data/latest":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Latest(w, r)
	case "/user/sensor-data/export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Export(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *SensorDataHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeServiceError(w, h.logger, service.ErrUnauthenticated)
		return
	}

	var req sensorDataRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil || req.Type == nil || req.Value == nil || *req.Type == "" {
		writeErr(w, http.StatusBadRequest, "Invalid sensor data format")
		return
	}

	dp, err := h.svc.Ingest(r.Context(), claims.UserID, service.IngestRequest{Type: *req.Type, Value: *req.Value})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Debug("Sensor data saved",
		zap.String("id", dp.ID),
		zap.String("type", dp.Type),
		zap.Float64("value", dp.Value),
		zap.String("owner_id", dp.OwnerID),
	)
	writeMsg(w, http.StatusOK, "Sensor data saved successfully")
}

func (h *SensorDataHandler) window(r *http.Request) (service.Window, error) {
	q := r.URL.Query()
	return service.ParseWindow(q.Get("timeframe"), q.Has("timeframe"), h.defaultWindow)
}

func (h *SensorDataHandler) List(w http.ResponseWriter, r *http.Request) {
	win, err := h.window(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	points, err := h.svc.Query(r.Context(), win)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	out := make([]dataPointView, 0, len(points))
	for _, dp := range points {
		out = append(out, toView(dp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SensorDataHandler) Latest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.svc.Latest(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	out := make(map[string]dataPointView, len(latest))
	for t, dp := range latest {
		out[t] = toView(dp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SensorDataHandler) Export(w http.ResponseWriter, r *http.Request) {
	win, err := h.window(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	points, err := h.svc.Query(r.Context(), win)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	data, err := GenerateSensorDataExport(points)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("sensor-data-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
