package ledgerapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ingest"
)

// ImportHandler handles POST /api/ledger-import (multipart "file", optional
// "base_date").
func ImportHandler(ing Importer, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
		if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				importFailed(w, http.StatusRequestEntityTooLarge, "file exceeds 32 MB", ingest.StageValidate, ingest.Summary{})
				return
			}
			importFailed(w, http.StatusBadRequest, "failed to parse multipart form", ingest.StageValidate, ingest.Summary{})
			return
		}
		defer r.MultipartForm.RemoveAll()

		f, fh, err := r.FormFile("file")
		if err != nil {
			importFailed(w, http.StatusBadRequest, "no file uploaded", ingest.StageValidate, ingest.Summary{})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			importFailed(w, http.StatusBadRequest, "failed to read file: "+fh.Filename, ingest.StageValidate, ingest.Summary{})
			return
		}

		sum, err := ing.Run(r.Context(), ingest.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
			BaseDate:    strings.TrimSpace(r.FormValue("base_date")),
		})
		if err != nil {
			stage, msg := ingest.StageUpsert, err.Error()
			var se *ingest.StageError
			if errors.As(err, &se) {
				stage, msg = se.Stage, se.Err.Error()
			}
			status := http.StatusInternalServerError
			if stage != ingest.StageUpsert {
				status = http.StatusBadRequest
			}
			importFailed(w, status, msg, stage, sum)
			return
		}

		log.Info().Str("run_id", sum.RunID).Str("file", sum.File).Int("upserted", sum.Upserted).Msg("ledger import served")
		api.RespondWithPayload(w, map[string]interface{}{
			"run_id":   sum.RunID,
			"file":     sum.File,
			"total":    sum.Total,
			"valid":    sum.Valid,
			"upserted": sum.Upserted,
		})
	}
}

func importFailed(w http.ResponseWriter, status int, msg, stage string, sum ingest.Summary) {
	api.RespondWithError(w, status, msg, map[string]interface{}{
		"stage":    stage,
		"total":    sum.Total,
		"valid":    sum.Valid,
		"upserted": sum.Upserted,
	})
}
