package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/receipt-studio/internal/export"
	"github.com/zombor/receipt-studio/internal/imaging"
	"github.com/zombor/receipt-studio/internal/layout"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/totals"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// statusFor maps an error to the HTTP status the UI reacts to
func statusFor(err error) int {
	switch {
	case errors.Is(err, export.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrExportInProgress):
		return http.StatusConflict
	case errors.Is(err, export.ErrRenderTargetUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrTermsNotAccepted),
		errors.Is(err, export.ErrInvalidLogo),
		errors.Is(err, receipt.ErrUnknownField),
		errors.Is(err, receipt.ErrReadOnlyField),
		errors.Is(err, imaging.ErrUnsupportedLogo),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

var exportErrors = []error{
	export.ErrTermsNotAccepted,
	export.ErrInvalidLogo,
	export.ErrRenderTargetUnavailable,
	export.ErrExportInProgress,
	export.ErrCaptureFailed,
	export.ErrEncodeFailed,
	export.ErrPrintFailed,
	export.ErrDownloadFailed,
	export.ErrArtifactNotFound,
}

// errorMessage is the text shown to the user for err
func errorMessage(err error, status int) string {
	for _, target := range exportErrors {
		if errors.Is(err, target) {
			return export.UserMessage(err)
		}
	}
	if status >= http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": errorMessage(err, status),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func decodeField(r *http.Request) (fieldRequest, error) {
	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", errBadRequest)
	}
	return req, nil
}

func itemIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, fmt.Errorf("item index %q: %w", r.PathValue("index"), errBadRequest)
	}
	return index, nil
}

type itemView struct {
	Code         string `json:"code"`
	Description  string `json:"description"`
	Description2 string `json:"description2"`
	UnitAmount   string `json:"unitAmount"`
	TaxClass     string `json:"taxClass"`
}

type totalsView struct {
	Subtotal       string `json:"subtotal"`
	Tax            string `json:"tax"`
	Total          string `json:"total"`
	Cash           string `json:"cash"`
	Change         string `json:"change"`
	ChangeComputed bool   `json:"change_computed"`
}

// receiptResponse is the editor state: form values keyed by field name plus
// the derived totals
type receiptResponse struct {
	Fields  map[string]string `json:"fields"`
	Items   []itemView        `json:"items"`
	HasLogo bool              `json:"has_logo"`
	Totals  totalsView        `json:"totals"`
}

func newReceiptResponse(r receipt.Receipt, t totals.Totals) receiptResponse {
	cash := ""
	if r.Payment.CashTendered.Valid {
		cash = totals.Format2(r.Payment.CashTendered.Decimal)
	}
	date := ""
	if !r.Timestamps.Date.IsZero() {
		date = r.Timestamps.Date.Format("2006-01-02")
	}

	items := make([]itemView, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, itemView{
			Code:         item.Code,
			Description:  item.Description,
			Description2: item.Description2,
			UnitAmount:   totals.Format2(item.UnitAmount),
			TaxClass:     string(item.TaxClass),
		})
	}

	return receiptResponse{
		Fields: map[string]string{
			receipt.FieldStoreName:          r.Store.Name,
			receipt.FieldStoreAddress:       r.Store.Address,
			receipt.FieldPhone:              r.Store.Phone,
			receipt.FieldCashTendered:       cash,
			receipt.FieldRegisterInfo:       r.Identifiers.RegisterInfo,
			receipt.FieldTransactionNumber:  r.Identifiers.TransactionNumber,
			receipt.FieldStoreNumber:        r.Identifiers.StoreNumber,
			receipt.FieldBarcode:            r.Identifiers.BarcodeRaw,
			receipt.FieldReferenceNumber:    r.Identifiers.ReferenceNumber,
			receipt.FieldDate:               date,
			receipt.FieldTime:               r.FormattedTime(),
			receipt.FieldDateFormat:         string(r.Timestamps.Format),
			receipt.FieldPromoMessage:       r.Messages.Promo,
			receipt.FieldSurveyInstructions: r.Messages.Survey,
			receipt.FieldAcceptedTerms:      strconv.FormatBool(r.AcceptedTerms),
		},
		Items:   items,
		HasLogo: r.Store.Logo != nil,
		Totals: totalsView{
			Subtotal:       totals.Format2(t.Subtotal),
			Tax:            totals.Format2(t.Tax),
			Total:          totals.Format2(t.Total),
			Cash:           totals.Format2(t.Cash),
			Change:         totals.Format2(t.Change),
			ChangeComputed: t.ChangeComputed,
		},
	}
}

// writeReceipt responds with the session's current state
func (s *Server) writeReceipt(w http.ResponseWriter, status int) {
	r, t := s.session.Snapshot()
	writeJSON(w, status, newReceiptResponse(r, t))
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleGetReceipt returns the receipt being edited
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	s.writeReceipt(w, http.StatusOK)
}

// handleSetField sets one receipt field
func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	req, err := decodeField(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.session.SetField(req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	s.writeReceipt(w, http.StatusOK)
}

// handleAddItem appends a blank line item
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	s.session.AddItem()
	s.writeReceipt(w, http.StatusCreated)
}

// handleUpdateItem sets one field of a line item
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := decodeField(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.session.UpdateItem(index, req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	s.writeReceipt(w, http.StatusOK)
}

// handleRemoveItem deletes a line item
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.session.RemoveItem(index)
	s.writeReceipt(w, http.StatusOK)
}

// handleClear empties the items and cash
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	s.writeReceipt(w, http.StatusOK)
}

// handleReset restores the sample receipt
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	s.writeReceipt(w, http.StatusOK)
}

// handleUploadLogo handles logo upload
func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	maxFormSize := int64(imaging.MaxLogoBytes)
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize+1<<20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, fmt.Errorf("logo is too large or malformed: %w", errBadRequest))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, fmt.Errorf("no file was selected: %w", errBadRequest))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".gif":
			contentType = "image/gif"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}

	if _, err := s.session.SetLogo(data, contentType); err != nil {
		slog.Error("Error processing logo", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}
	s.writeReceipt(w, http.StatusOK)
}

// handleRemoveLogo takes the logo off the receipt
func (s *Server) handleRemoveLogo(w http.ResponseWriter, r *http.Request) {
	s.session.RemoveLogo()
	s.writeReceipt(w, http.StatusOK)
}

// handlePreview returns the painted lines
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc := s.session.Document()
	writeJSON(w, http.StatusOK, map[string]any{
		"lines":  doc.Lines,
		"zoom":   s.session.Zoom(),
		"digest": doc.Digest(),
	})
}

// handlePreviewHTML returns the preview fragment at the current zoom
func (s *Server) handlePreviewHTML(w http.ResponseWriter, r *http.Request) {
	fragment, err := layout.PreviewHTML(s.session.Document(), s.session.Zoom())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, fragment)
}

// handlePreviewText returns the plain text rendering
func (s *Server) handlePreviewText(w http.ResponseWriter, r *http.Request) {
	width := s.textWidth
	if q := r.URL.Query().Get("width"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			width = n
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.session.Document().Text(width))
}

// handleZoom sets the preview zoom
func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Zoom float64 `json:"zoom"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", errBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"zoom": s.session.SetZoom(req.Zoom),
	})
}

// handlePrint dispatches the receipt to the printer and returns the print page
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	job, err := s.session.Print(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", job.ContentType)
	w.Header().Set("X-Print-Job", job.ID)
	w.Write(job.Document)
}

// handleExportPDF returns the receipt as a PDF attachment
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.session.ExportPDF(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Write(artifact.Data)
}

// handleGetDownload serves a previously exported PDF
func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.session.Download(name)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleDiscardDownload removes an exported PDF the browser has saved
func (s *Server) handleDiscardDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DiscardDownload(r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
