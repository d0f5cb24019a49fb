package paket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"SimonPaket/api"
	"SimonPaket/api/audit"
	"SimonPaket/api/constants"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func uploadDir() string {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "./uploads"
}

func listDocuments(ctx context.Context, pool *pgxpool.Pool, paketID string) ([]Document, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, paket_id, name, filename, filepath, mimetype, filesize,
		       COALESCE(category, ''), progress_percentage, created_at
		FROM documents
		WHERE paket_id = $1
		ORDER BY created_at DESC`, paketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PaketID, &d.Name, &d.Filename, &d.Filepath,
			&d.Mimetype, &d.Filesize, &d.Category, &d.ProgressPercentage, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UploadDocuments stores the uploaded files on disk and records their
// metadata against the paket.
func UploadDocuments(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFailedToParseMultipartForm)
			return
		}
		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "No files uploaded")
			return
		}

		paket, ok := fetchPaket(w, r, pool, id)
		if !ok {
			return
		}

		category := r.FormValue("category")
		var progressPct *int
		if v := r.FormValue("progressPercentage"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				progressPct = &n
			}
		}

		dir := uploadDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		saved := []Document{}
		for _, fh := range files {
			src, err := fh.Open()
			if err != nil {
				api.RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}

			storedName := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(),
				uuid.NewString()[:8], filepath.Ext(fh.Filename))
			dst, err := os.Create(filepath.Join(dir, storedName))
			if err != nil {
				src.Close()
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			size, err := io.Copy(dst, src)
			dst.Close()
			src.Close()
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}

			var doc Document
			err = pool.QueryRow(ctx, `
				INSERT INTO documents (paket_id, name, filename, filepath, mimetype, filesize, category, progress_percentage)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id, created_at`,
				id, fh.Filename, storedName, "/uploads/"+storedName,
				fh.Header.Get("Content-Type"), size, category, progressPct,
			).Scan(&doc.ID, &doc.CreatedAt)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			doc.PaketID = id
			doc.Name = fh.Filename
			doc.Filename = storedName
			doc.Filepath = "/uploads/" + storedName
			doc.Mimetype = fh.Header.Get("Content-Type")
			doc.Filesize = size
			doc.Category = category
			doc.ProgressPercentage = progressPct
			saved = append(saved, doc)
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "UPLOAD_DOCUMENTS",
			Entity:   "Document",
			EntityID: id,
			Details: map[string]interface{}{
				"paketName":  paket.Name,
				"filesCount": len(files),
			},
		})

		api.RespondWithPayload(w, true, "", saved)
	}
}

// DeleteDocument removes one document record and its file on disk.
func DeleteDocument(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)
		paketID := vars["id"]
		docID := vars["docId"]

		var doc Document
		err := pool.QueryRow(ctx, `
			SELECT id, paket_id, name, filename, filepath
			FROM documents WHERE id = $1`, docID,
		).Scan(&doc.ID, &doc.PaketID, &doc.Name, &doc.Filename, &doc.Filepath)
		if errors.Is(err, pgx.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, "Document not found")
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if doc.PaketID != paketID {
			api.RespondWithError(w, http.StatusBadRequest, "Document does not belong to this paket")
			return
		}

		paket, ok := fetchPaket(w, r, pool, paketID)
		if !ok {
			return
		}

		if err := os.Remove(filepath.Join(uploadDir(), doc.Filename)); err != nil && !os.IsNotExist(err) {
			api.LogError("failed to remove document file %s: %v", doc.Filename, err)
		}

		if _, err := pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		audit.Log(pool, audit.Entry{
			UserID:   api.GetUserIDFromCtx(ctx),
			Action:   "DELETE_DOCUMENT",
			Entity:   "Document",
			EntityID: docID,
			Details:  map[string]interface{}{"paketName": paket.Name, "fileName": doc.Name},
		})
		api.RespondWithResult(w, true, "")
	}
}
