package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
)

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]entity.Session
	records  map[uuid.UUID][]entity.FrameEventRecord
	saveErr  error
	findErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[uuid.UUID]entity.Session),
		records:  make(map[uuid.UUID][]entity.FrameEventRecord),
	}
}

func (r *fakeRepo) Create(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeRepo) Update(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return entity.ErrSessionNotFound
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("find session %s: %w", id, entity.ErrSessionNotFound)
	}
	return &s, nil
}

func (r *fakeRepo) SaveFrameRecords(_ context.Context, id uuid.UUID, records []entity.FrameEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[id] = append([]entity.FrameEventRecord(nil), records...)
	return nil
}

func (r *fakeRepo) FrameRecords(_ context.Context, id uuid.UUID) ([]entity.FrameEventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id], nil
}

func (r *fakeRepo) get(id uuid.UUID) entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

type fakeStorage struct {
	mu          sync.Mutex
	videos      map[string][]byte
	artifacts   map[string][]byte
	downloadErr error
	uploadErr   map[string]error
	deleteErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		videos:    make(map[string][]byte),
		artifacts: make(map[string][]byte),
		uploadErr: make(map[string]error),
	}
}

func (s *fakeStorage) UploadVideo(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[key] = data
	return nil
}

func (s *fakeStorage) DownloadVideo(_ context.Context, key string, dest string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	s.mu.Lock()
	data, ok := s.videos[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: video %s not found", entity.ErrSourceUnavailable, key)
	}
	return os.WriteFile(dest, data, 0644)
}

func (s *fakeStorage) DeleteVideo(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videos, key)
	return nil
}

func (s *fakeStorage) UploadArtifact(_ context.Context, key string, src string) error {
	if err := s.uploadErr[key]; err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[key] = data
	return nil
}

func (s *fakeStorage) OpenArtifact(_ context.Context, key string) (io.ReadCloser, *port.ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.artifacts[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: artifact %s not found", entity.ErrSourceUnavailable, key)
	}
	return io.NopCloser(bytes.NewReader(data)), &port.ArtifactInfo{Size: int64(len(data))}, nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.artifacts {
		if len(k) > len(prefix) && k[:len(prefix)+1] == prefix+"/" {
			delete(s.artifacts, k)
		}
	}
	return nil
}

func (s *fakeStorage) artifactKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.artifacts))
	for k := range s.artifacts {
		keys = append(keys, k)
	}
	return keys
}

// fakeExtractor writes n placeholder frames so downstream stages have real files.
type fakeExtractor struct {
	frames int
	err    error
	// onExtract runs before anything else, e.g. to cancel the caller's context.
	onExtract func()
}

func (e *fakeExtractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameExtractionResult, error) {
	if e.onExtract != nil {
		e.onExtract()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrSourceUnavailable, err)
	}
	res := &port.FrameExtractionResult{FrameCount: e.frames, VideoDuration: float64(e.frames)}
	for i := 0; i < e.frames; i++ {
		id := entity.FrameID(i, "jpg")
		path := outputDir + "/" + id
		if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
			return nil, err
		}
		res.Frames = append(res.Frames, entity.Frame{Index: i, ID: id, Path: path})
	}
	return res, nil
}

type fakeCache struct {
	mu      sync.Mutex
	totals  map[uuid.UUID]*entity.GameTotals
	readErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{totals: make(map[uuid.UUID]*entity.GameTotals)}
}

func (c *fakeCache) WriteTotals(_ context.Context, id uuid.UUID, t *entity.GameTotals) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[id] = t.Clone()
	return nil
}

func (c *fakeCache) ReadTotals(_ context.Context, id uuid.UUID) (*entity.GameTotals, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.totals[id], nil
}

func (c *fakeCache) DeleteTotals(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.totals, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	dlq      []string
	err      error
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *fakePublisher) PublishRequest(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *fakePublisher) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dlq = append(p.dlq, reason)
	return nil
}

type fakeNotifier struct {
	calls []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, sessionID, _, _ string) error {
	n.calls = append(n.calls, userEmail+":"+sessionID)
	return nil
}

var errBoom = errors.New("boom")
