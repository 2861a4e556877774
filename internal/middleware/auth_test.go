package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"podslice/internal/models"
	"podslice/internal/test"
)

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid bearer token", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "email", "first_name", "api_token", "feed_uuid", "notify_in_app", "notify_email", "created_at", "updated_at"}).
			AddRow(int64(1), "alice@example.com", "Alice", "secret-token", "some-uuid", true, false, now, now)
		mock.ExpectQuery(`SELECT \* FROM users WHERE api_token`).WithArgs("secret-token").WillReturnRows(rows)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		rr := httptest.NewRecorder()

		mockHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxUser := r.Context().Value(models.UserContextKey)
			assert.NotNil(t, ctxUser)
			dbUser, ok := ctxUser.(*models.User)
			assert.True(t, ok)
			assert.Equal(t, int64(1), dbUser.ID)
			assert.Equal(t, "alice@example.com", dbUser.Email)
			w.WriteHeader(http.StatusOK)
		})

		AuthMiddleware(mockHandler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no authorization header", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token sometoken")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM users WHERE api_token`).WithArgs("bogus").WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
