package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roxtor/backend/internal/backup"
	"roxtor/backend/internal/cashclose"
	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/intake"
)

const isoDay = "2006-01-02"

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		storeID := q.Get("store_id")
		var (
			orders []domain.Order
			err    error
		)
		if q.Get("from") != "" || q.Get("to") != "" {
			from, to, rangeErr := a.parseRange(q.Get("from"), q.Get("to"))
			if rangeErr != nil {
				a.writeServiceError(w, r, rangeErr)
				return
			}
			orders, err = a.service.OrdersBetween(r.Context(), from, to, storeID)
		} else {
			orders, err = a.service.ListOrders(r.Context(), storeID)
		}
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.ServiceOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.CreateServiceOrder(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order": order})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleOrderActions serves /api/v1/orders/{id} and /api/v1/orders/{id}/{action}.
func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/orders/"), "/")
	parts := strings.Split(tail, "/")
	id := strings.TrimSpace(parts[0])
	if id == "" || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, errors.New("invalid order path"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		order, err := a.service.GetOrder(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	ctx := r.Context()
	var (
		order domain.Order
		err   error
	)
	switch parts[1] {
	case "receive":
		order, err = a.service.ReceiveTask(ctx, id)
	case "complete":
		order, err = a.service.CompleteTask(ctx, id)
	case "reset":
		order, err = a.service.ResetTask(ctx, id)
	case "receive-from-workshop":
		order, err = a.service.ReceiveFromWorkshop(ctx, id)
	case "finish":
		order, err = a.service.FinishEntirely(ctx, id)
	case "deliver":
		order, err = a.service.MarkDelivered(ctx, id)
	case "transfer":
		var req domain.TransferRequest
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		order, err = a.service.TransferTask(ctx, id, req)
	case "payments":
		var req domain.PaymentRequest
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		order, err = a.service.RegisterPayment(ctx, id, req)
	case "assign-workshop":
		var req domain.AssignWorkshopRequest
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		result, assignErr := a.service.AssignWorkshop(ctx, id, req)
		if assignErr != nil {
			a.writeServiceError(w, r, assignErr)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown order action %q", parts[1]))
		return
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleDirectSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DirectSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.CreateDirectSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	columns, err := a.service.Board(r.Context(), q.Get("store_id"), q.Get("agent_id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

func (a *API) handlePendingDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	orders, err := a.service.PendingDeliveries(r.Context(), r.URL.Query().Get("store_id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DraftTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	draft, err := a.service.DraftFromText(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (a *API) handleAcceptDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.AcceptDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.AcceptDraft(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleCashClosing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	day, err := a.parseDay(q.Get("date"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	storeID := q.Get("store_id")

	switch strings.ToLower(strings.TrimSpace(q.Get("format"))) {
	case "text":
		summary, err := a.service.CashClosingSummary(r.Context(), day, storeID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(summary))
	case "xlsx":
		report, err := a.service.CashClosing(r.Context(), day, storeID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"cierre-%s.xlsx\"", day.Format(isoDay)))
		if err := cashclose.WriteXLSX(w, report); err != nil {
			a.logger.WithError(err).WithField("func", "handleCashClosing").Error("xlsx export failed")
		}
	case "", "json":
		report, err := a.service.CashClosing(r.Context(), day, storeID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be json, xlsx or text"))
	}
}

func (a *API) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	doc, err := a.service.Export(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"roxtor-backup-%s.json\"", doc.ExportDate.Format(isoDay)))
	writeJSON(w, http.StatusOK, doc)
}

// handleBackupImport replaces all data with the posted document. The caller
// must pass confirm=true.
func (a *API) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	doc, err := backup.Decode(r.Body)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.service.Import(r.Context(), doc, confirm); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restored": true,
		"orders":   len(doc.Orders),
		"version":  doc.Version,
	})
}

// parseDay accepts YYYY-MM-DD or DD/MM/YYYY in the business timezone. An
// empty value means today.
func (a *API) parseDay(raw string) (time.Time, error) {
	loc := a.service.Location()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().In(loc), nil
	}
	if day, err := time.ParseInLocation(isoDay, raw, loc); err == nil {
		return day, nil
	}
	day, err := domain.ParseDay(raw, loc)
	if err != nil {
		return time.Time{}, &intake.ValidationError{Fields: []string{"Fecha"}}
	}
	return day, nil
}

func (a *API) parseRange(rawFrom string, rawTo string) (time.Time, time.Time, error) {
	from, err := a.parseDay(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if strings.TrimSpace(rawTo) == "" {
		return from, from, nil
	}
	to, err := a.parseDay(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
