package cards

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/blob"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

type staticTokens struct{}

func (staticTokens) Issue(publicCode string) (string, error) {
	return "token-" + publicCode, nil
}

type sequenceIDs struct {
	mu      sync.Mutex
	counter int
}

func (p *sequenceIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	return "id-" + strconv.Itoa(p.counter), nil
}

func (p *sequenceIDs) NewPublicCode() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	return "PUB" + strconv.Itoa(p.counter), nil
}

// countingFiles wraps a FileStore, counting calls and optionally failing them.
type countingFiles struct {
	drive.FileStore
	mu       sync.Mutex
	uploads  int
	replaces int
	failWith error
}

func (f *countingFiles) UploadOrReplace(ctx context.Context, request drive.UploadRequest) (drive.UploadResult, error) {
	f.mu.Lock()
	f.uploads++
	failure := f.failWith
	f.mu.Unlock()
	if failure != nil {
		return drive.UploadResult{}, failure
	}
	return f.FileStore.UploadOrReplace(ctx, request)
}

func (f *countingFiles) ReplaceContent(ctx context.Context, fileID string, content io.Reader, mimeType string) (drive.UploadResult, error) {
	f.mu.Lock()
	f.replaces++
	failure := f.failWith
	f.mu.Unlock()
	if failure != nil {
		return drive.UploadResult{}, failure
	}
	return f.FileStore.ReplaceContent(ctx, fileID, content, mimeType)
}

func (f *countingFiles) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads + f.replaces
}

// flakyBlobs wraps a blob store and can fail deletes.
type flakyBlobs struct {
	blob.Store
	failDelete bool
	deletes    []string
}

func (b *flakyBlobs) Delete(ctx context.Context, objectPath string) error {
	b.deletes = append(b.deletes, objectPath)
	if b.failDelete {
		return errors.New("bucket unavailable")
	}
	return b.Store.Delete(ctx, objectPath)
}

type fixture struct {
	db      *gorm.DB
	service *Service
	memory  *drive.MemoryStore
	files   *countingFiles
	blobs   *flakyBlobs
	event   events.Event
}

type eventSettings struct {
	folderID       string
	distinctGroups *int
	cardsPerGroup  *int
}

func intPointer(value int) *int {
	return &value
}

func newFixture(t *testing.T, settings eventSettings) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cards.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&clients.Client{}, &events.Event{}, &Card{}, &UploadAttempt{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	client := clients.Client{FullName: "Marta Ruiz"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	event := events.Event{
		ClientID:       client.ID,
		EventCode:      "EV-2024-0001",
		EventType:      "boda",
		EventDate:      "2024-09-21",
		VideoMode:      events.VideoModeUpgrade,
		DistinctGroups: settings.distinctGroups,
		CardsPerGroup:  settings.cardsPerGroup,
	}
	if settings.folderID != "" {
		folderID := settings.folderID
		event.DriveFolderID = &folderID
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	memory := drive.NewMemoryStore()
	files := &countingFiles{FileStore: memory}
	localBlobs, err := blob.NewLocalStore(filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	blobs := &flakyBlobs{Store: localBlobs}

	service, err := NewService(ServiceConfig{
		Database:        db,
		Files:           files,
		Blobs:           blobs,
		Tokens:          staticTokens{},
		Clock:           func() time.Time { return fixedNow },
		IDProvider:      &sequenceIDs{},
		TransferTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return fixture{db: db, service: service, memory: memory, files: files, blobs: blobs, event: event}
}

// newGroupedFixture seeds an event with 2 groups of 3 cards and generates its 6 cards.
func newGroupedFixture(t *testing.T) fixture {
	t.Helper()
	f := newFixture(t, eventSettings{
		folderID:       "folder-ev-1",
		distinctGroups: intPointer(2),
		cardsPerGroup:  intPointer(3),
	})
	created, err := f.service.GenerateMissing(context.Background(), f.event.ID)
	if err != nil {
		t.Fatalf("failed to generate cards: %v", err)
	}
	if created != 6 {
		t.Fatalf("expected 6 generated cards, got %d", created)
	}
	return f
}

func (f fixture) cardAt(t *testing.T, index int) Card {
	t.Helper()
	var card Card
	if err := f.db.Where("event_fk = ? AND card_index = ?", f.event.ID, index).Take(&card).Error; err != nil {
		t.Fatalf("failed to load card %d: %v", index, err)
	}
	return card
}

func (f fixture) attempts(t *testing.T) []UploadAttempt {
	t.Helper()
	var list []UploadAttempt
	if err := f.db.Order("created_at ASC").Order("id ASC").Find(&list).Error; err != nil {
		t.Fatalf("failed to load attempts: %v", err)
	}
	return list
}

func errorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
