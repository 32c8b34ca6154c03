package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"drawtica/internal/allowance"
	"drawtica/internal/domain"
	"drawtica/internal/i18n"
	"drawtica/internal/middleware"
	"drawtica/internal/pipeline"
)

// A base64 data URI of the largest accepted image plus JSON framing fits
// comfortably in twice the decoded ceiling.
const maxTransformBody = 2 * domain.MaxUploadBytes

type transformRequest struct {
	Image    string `json:"image"`
	FreeUses *int   `json:"free_uses,omitempty"`
}

type transformResponse struct {
	Success   bool   `json:"success"`
	PDF       string `json:"pdf"`
	Preview   string `json:"preview"`
	Remaining int    `json:"remaining"`
	Anonymous bool   `json:"anonymous"`
	FreeUses  *int   `json:"free_uses,omitempty"`
}

// Transform turns an uploaded photo into a printable coloring page. The image
// arrives either as a JSON data URI or as a multipart "file" field.
func (a *App) Transform(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTransformBody)

	in, key, ok := a.readTransformInput(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "invalid_input", a.t(r, key))
		return
	}
	in.Requester.AccountID = a.currentAccountID(r)
	in.RequestID = middleware.RequestIDFromContext(r.Context())

	res, err := a.Pipeline.Run(r.Context(), in)
	if err != nil {
		a.writeTransformError(w, r, in.Requester, err)
		return
	}

	out := transformResponse{
		Success:   true,
		PDF:       base64.StdEncoding.EncodeToString(res.PDF),
		Preview:   "data:" + res.Preview.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(res.Preview.Data),
		Remaining: res.Remaining,
		Anonymous: res.Anonymous,
	}
	if res.Anonymous {
		used := res.FreeUses
		out.FreeUses = &used
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) readTransformInput(r *http.Request) (pipeline.Input, i18n.Key, bool) {
	var in pipeline.Input
	in.Requester.FreeUses = headerFreeUses(r)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxTransformBody); err != nil {
			return in, bodyErrorKey(err), false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return in, i18n.ImageMissing, false
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, domain.MaxUploadBytes+1))
		if err != nil {
			return in, i18n.BadRequest, false
		}
		in.Data = data
		in.MIMEType = header.Header.Get("Content-Type")
		if v, err := strconv.Atoi(r.FormValue("free_uses")); err == nil {
			in.Requester.FreeUses = v
		}
		return in, "", true
	}

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return in, bodyErrorKey(err), false
	}
	if strings.TrimSpace(req.Image) == "" {
		return in, i18n.ImageMissing, false
	}
	in.DataURI = req.Image
	if req.FreeUses != nil {
		in.Requester.FreeUses = *req.FreeUses
	}
	return in, "", true
}

func bodyErrorKey(err error) i18n.Key {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return i18n.PayloadTooLarge
	}
	return i18n.BadRequest
}

func headerFreeUses(r *http.Request) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.Header.Get("X-Free-Uses")))
	if err != nil {
		return 0
	}
	return v
}

func (a *App) writeTransformError(w http.ResponseWriter, r *http.Request, req allowance.Requester, err error) {
	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		a.log(r).Error().Err(err).Msg("transform: unclassified failure")
		a.error(w, http.StatusInternalServerError, string(domain.KindInternal), a.t(r, i18n.InternalError))
		return
	}
	switch perr.Kind {
	case domain.KindInvalidInput:
		a.error(w, http.StatusBadRequest, string(perr.Kind), a.t(r, inputErrorKey(perr.Err)))
	case domain.KindAllowanceExhausted:
		if req.Anonymous() {
			a.error(w, http.StatusUnauthorized, string(perr.Kind), a.t(r, i18n.FreeUsesExhausted))
			return
		}
		if errors.Is(perr.Err, domain.ErrUnauthorized) {
			a.error(w, http.StatusUnauthorized, "unauthorized", a.t(r, i18n.Unauthorized))
			return
		}
		a.error(w, http.StatusPaymentRequired, string(perr.Kind), a.t(r, i18n.CreditsExhausted))
	case domain.KindUpstreamFailure:
		a.error(w, http.StatusBadGateway, string(perr.Kind), a.t(r, i18n.TransformFailed))
	case domain.KindCanceled:
		// The client is gone; nobody is listening for a body.
	default:
		a.error(w, http.StatusInternalServerError, string(domain.KindInternal), a.t(r, i18n.InternalError))
	}
}

func inputErrorKey(err error) i18n.Key {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return i18n.UnsupportedType
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return i18n.PayloadTooLarge
	case errors.Is(err, domain.ErrMalformedImage):
		return i18n.MalformedImage
	default:
		return i18n.BadRequest
	}
}
