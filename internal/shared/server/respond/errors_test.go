package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorBodyShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		Error(c, http.StatusUnprocessableEntity, "invalid_coverage", "no files found", []string{"lcov"})
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "invalid_coverage" || body.Error.Message != "no files found" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/accepted", func(c *gin.Context) { Accepted(c, gin.H{"status": "PENDING"}) })
	router.POST("/created", func(c *gin.Context) { Created(c, gin.H{"format": "LCOV"}) })

	for path, want := range map[string]int{"/accepted": http.StatusAccepted, "/created": http.StatusCreated} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, nil))
		if resp.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.Code)
		}
	}
}
