package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/docpress/api/internal/handler"
	"github.com/docpress/api/internal/middleware"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/internal/store"
)

const testBucket = "docs-test"

// testApp holds all components needed for testing. The storage client and
// task queue are in-process fakes so tests can assert on what the handlers
// stored and enqueued.
type testApp struct {
	app     *fiber.App
	records *store.MemoryStore
	objects *fakeObjectStore
	tasks   *fakeEnqueuer
}

// fakeObjectStore stands in for the bucket. Uploads and presigns are
// recorded; presigned URLs are deterministic.
type fakeObjectStore struct {
	uploads map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploads: map[string]string{}}
}

func (f *fakeObjectStore) Upload(_ context.Context, localPath, bucket, key, _ string) error {
	f.uploads[bucket+"/"+key] = localPath
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, _, key, destDir string) (string, error) {
	return destDir + "/" + key, nil
}

func (f *fakeObjectStore) HeadContentType(_ context.Context, _, _ string) (string, error) {
	return "application/pdf", nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/%s/%s", bucket, key), nil
}

func (f *fakeObjectStore) PresignPut(_ context.Context, bucket, key, _ string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/put/%s/%s", bucket, key), nil
}

// fakeEnqueuer records queued tasks instead of talking to Redis.
type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "test", Queue: service.QueueConvert}, nil
}

// setupApp creates a Fiber app wired like main.go but on in-memory records,
// a fake bucket and a fake task queue. The rate limiter points at a test
// Redis DB and fails open when none is running.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (rate limiting only — limiter fails open without it)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	records := store.NewMemoryStore()
	objects := newFakeObjectStore()
	tasks := &fakeEnqueuer{}

	jobService := service.NewJobService(objects, records, tasks, testBucket, time.Hour)

	jobsHandler := handler.NewJobsHandler(jobService, validate)
	eventsHandler := handler.NewEventsHandler(jobService, validate)
	uploadHandler := handler.NewUploadHandler(jobService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage": testBucket,
				"records": "memory",
				"redis":   false,
			},
		})
	})

	// API routes with very high rate limits so tests don't get blocked
	api := app.Group("/api")

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(10000), jobsHandler.Create)
	jobs.Get("/status", rateLimiter.StatusLimit(10000), jobsHandler.Status)

	api.Post("/upload", rateLimiter.UploadLimit(10000), uploadHandler.Upload)
	api.Post("/events/object-created", rateLimiter.EventsLimit(10000), eventsHandler.ObjectCreated)

	return &testApp{app: app, records: records, objects: objects, tasks: tasks}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
