// Package media implements the ingestion pipeline. Images decode locally and
// become ready synchronously; videos persist to a scoped temp file, upload to
// the vendor file store, and are polled until remote processing settles.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/config"
	mediamodel "github.com/majianyu/gemini-chat/backend/internal/model/media"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
)

var ErrAssetNotFound = errors.New("media asset not found")

// Uploader is the slice of the vendor binding the pipeline drives.
type Uploader interface {
	Upload(ctx context.Context, credential, path, mimeType string) (ai.RemoteFile, error)
	FileStatus(ctx context.Context, credential, name string) (ai.RemoteFile, error)
	DeleteFile(ctx context.Context, credential, name string) error
}

var videoMIMETypes = map[string]string{
	"mp4":  "video/mp4",
	"mpeg": "video/mpeg",
	"mpg":  "video/mpeg",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"flv":  "video/x-flv",
	"webm": "video/webm",
	"wmv":  "video/x-ms-wmv",
	"3gpp": "video/3gpp",
}

// Service owns asset state and drives the upload/poll state machine. Status
// for each asset is advanced by exactly one pipeline goroutine; subscribers
// observe transitions through buffered event channels.
type Service struct {
	uploader   Uploader
	cfg        config.MediaConfig
	credential string

	mu      sync.Mutex
	assets  map[string]*mediamodel.Asset
	creds   map[string]string
	subs    map[string][]chan mediamodel.Event
	cancels map[string]context.CancelFunc
}

// NewService creates the pipeline. credential is the server fallback key used
// when an upload request does not carry its own.
func NewService(uploader Uploader, cfg config.MediaConfig, credential string) *Service {
	return &Service{
		uploader:   uploader,
		cfg:        cfg,
		credential: credential,
		assets:     make(map[string]*mediamodel.Asset),
		creds:      make(map[string]string),
		subs:       make(map[string][]chan mediamodel.Event),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Get returns a snapshot of one asset.
func (s *Service) Get(id string) (mediamodel.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return mediamodel.Asset{}, ErrAssetNotFound
	}
	return *asset, nil
}

// Subscribe registers for status events on one asset. The channel closes
// after the terminal event; a terminal asset replays its final state
// immediately. The returned func unregisters.
func (s *Service) Subscribe(id string) (<-chan mediamodel.Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return nil, nil, ErrAssetNotFound
	}

	ch := make(chan mediamodel.Event, 8)
	if asset.Status.Terminal() {
		ch <- mediamodel.Event{AssetID: id, Status: asset.Status, Detail: asset.Error, Timestamp: asset.UpdatedAt}
		close(ch)
		return ch, func() {}, nil
	}

	s.subs[id] = append(s.subs[id], ch)
	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		channels := s.subs[id]
		for i, existing := range channels {
			if existing == ch {
				s.subs[id] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe, nil
}

// Discard cancels in-flight processing, or drops a settled asset and deletes
// its remote file best effort.
func (s *Service) Discard(id string) error {
	s.mu.Lock()
	asset, ok := s.assets[id]
	if !ok {
		s.mu.Unlock()
		return ErrAssetNotFound
	}

	if cancel, running := s.cancels[id]; running {
		s.mu.Unlock()
		log.Printf("[media] cancelling in-flight processing id=%s", id)
		cancel()
		return nil
	}

	remoteName := asset.RemoteName
	credential := s.creds[id]
	delete(s.assets, id)
	delete(s.creds, id)
	s.mu.Unlock()

	if remoteName != "" {
		go s.cleanupRemote(credential, remoteName)
	}
	log.Printf("[media] asset discarded id=%s", id)
	return nil
}

// StartVideo admits a video and processes it on a background goroutine. The
// returned snapshot is still uploading; progress arrives via Subscribe.
func (s *Service) StartVideo(credential, fileName string, data []byte) (mediamodel.Asset, error) {
	snapshot, cred, err := s.admitVideo(credential, fileName, int64(len(data)))
	if err != nil {
		return mediamodel.Asset{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.registerCancel(snapshot.ID, cancel)

	go func() {
		defer s.clearCancel(snapshot.ID)
		defer cancel()
		s.runVideo(ctx, snapshot.ID, cred, data)
	}()

	return snapshot, nil
}

// PrepareVideo runs the full pipeline synchronously: temp persist, upload,
// poll to a terminal state. The asset stays cancellable via Discard while the
// call is in flight.
func (s *Service) PrepareVideo(ctx context.Context, credential, fileName string, data []byte) (mediamodel.Asset, error) {
	snapshot, cred, err := s.admitVideo(credential, fileName, int64(len(data)))
	if err != nil {
		return mediamodel.Asset{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer s.clearCancel(snapshot.ID)
	defer cancel()
	s.registerCancel(snapshot.ID, cancel)

	return s.runVideo(runCtx, snapshot.ID, cred, data)
}

func (s *Service) admitVideo(credential, fileName string, size int64) (mediamodel.Asset, string, error) {
	mimeType, ok := videoMIMETypes[normalizedExt(fileName)]
	if !ok {
		return mediamodel.Asset{}, "", &apperr.MediaProcessingError{
			Status: "invalid",
			Detail: fmt.Sprintf("unsupported video type %q", filepath.Ext(fileName)),
		}
	}
	if s.cfg.MaxVideoBytes > 0 && size > s.cfg.MaxVideoBytes {
		return mediamodel.Asset{}, "", &apperr.MediaProcessingError{
			Status: "invalid",
			Detail: fmt.Sprintf("video exceeds %d byte limit", s.cfg.MaxVideoBytes),
		}
	}

	cred := credential
	if cred == "" {
		cred = s.credential
	}
	if cred == "" {
		return mediamodel.Asset{}, "", &apperr.AuthenticationError{Reason: "api key is required"}
	}

	now := time.Now().UTC()
	asset := &mediamodel.Asset{
		ID:        uuid.NewString(),
		Kind:      mediamodel.KindVideo,
		Status:    mediamodel.StatusUploading,
		FileName:  fileName,
		MIMEType:  mimeType,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.assets[asset.ID] = asset
	s.creds[asset.ID] = cred
	s.mu.Unlock()

	log.Printf("[media] video admitted id=%s file=%s size=%d", asset.ID, fileName, size)
	return *asset, cred, nil
}

// runVideo advances one admitted video to a terminal state. The temp file is
// released on every exit path.
func (s *Service) runVideo(ctx context.Context, id, credential string, data []byte) (mediamodel.Asset, error) {
	asset, err := s.Get(id)
	if err != nil {
		return mediamodel.Asset{}, err
	}

	tmp, err := os.CreateTemp(s.cfg.TempDir, "upload-*."+normalizedExt(asset.FileName))
	if err != nil {
		return s.failVideo(id, pipelineError("uploading", err))
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, writeErr := tmp.Write(data)
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return s.failVideo(id, pipelineError("uploading", writeErr))
	}

	remote, err := s.uploader.Upload(ctx, credential, path, asset.MIMEType)
	if err != nil {
		return s.failVideo(id, pipelineError("uploading", err))
	}

	s.setRemote(id, remote)
	s.setStatus(id, mediamodel.StatusProcessing, "")

	state := remote.State
	detail := remote.Detail

	if state == ai.FileStateProcessing {
		pollErr := s.policy().Run(ctx, func(ctx context.Context) (bool, error) {
			current, err := s.uploader.FileStatus(ctx, credential, remote.Name)
			if err != nil {
				return false, err
			}
			state = current.State
			if current.Detail != "" {
				detail = current.Detail
			}
			return current.State != ai.FileStateProcessing, nil
		})
		if pollErr != nil {
			snapshot, err := s.failVideo(id, s.pollTerminationError(pollErr))
			go s.cleanupRemote(credential, remote.Name)
			return snapshot, err
		}
	}

	if state == ai.FileStateFailed {
		if detail == "" {
			detail = "remote processing failed"
		}
		return s.failVideo(id, &apperr.MediaProcessingError{Status: string(ai.FileStateFailed), Detail: detail})
	}

	snapshot := s.setStatus(id, mediamodel.StatusReady, "")
	log.Printf("[media] video ready id=%s remote=%s", id, remote.Name)
	return snapshot, nil
}

func (s *Service) failVideo(id string, cause error) (mediamodel.Asset, error) {
	snapshot := s.setStatus(id, mediamodel.StatusFailed, failureDetail(cause))
	log.Printf("[media] video processing failed id=%s: %v", id, cause)
	return snapshot, cause
}

func (s *Service) cleanupRemote(credential, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.uploader.DeleteFile(ctx, credential, name); err != nil {
		log.Printf("[media] remote cleanup failed file=%s: %v", name, err)
	}
}

func (s *Service) policy() PollPolicy {
	return PollPolicy{
		Interval:     s.cfg.PollInterval,
		MaxWait:      s.cfg.PollMaxWait,
		CheckRetries: s.cfg.CheckRetries,
		CheckBackoff: s.cfg.CheckBackoff,
	}
}

// pollTerminationError maps a poll loop failure to the pipeline taxonomy.
// Context errors pass through so cancellation stays recognizable.
func (s *Service) pollTerminationError(err error) error {
	if errors.Is(err, ErrPollDeadline) {
		return &apperr.MediaProcessingError{
			Status: "processing",
			Detail: fmt.Sprintf("no result within %s", s.cfg.PollMaxWait),
			Err:    err,
		}
	}
	return pipelineError("processing", err)
}

func pipelineError(stage string, err error) error {
	if apperr.IsAuthentication(err) || apperr.IsMediaProcessing(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &apperr.MediaProcessingError{Status: stage, Err: err}
}

func failureDetail(cause error) string {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return "cancelled"
	}

	var mediaErr *apperr.MediaProcessingError
	if errors.As(cause, &mediaErr) && mediaErr.Detail != "" {
		return mediaErr.Detail
	}
	return cause.Error()
}

func (s *Service) setRemote(id string, remote ai.RemoteFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if asset, ok := s.assets[id]; ok {
		asset.RemoteName = remote.Name
		asset.RemoteURI = remote.URI
		asset.UpdatedAt = time.Now().UTC()
	}
}

// setStatus advances one asset and fans the event out. Terminal transitions
// close subscriber channels; the send never blocks the pipeline.
func (s *Service) setStatus(id string, status mediamodel.Status, detail string) mediamodel.Asset {
	now := time.Now().UTC()

	s.mu.Lock()
	asset, ok := s.assets[id]
	if !ok {
		s.mu.Unlock()
		return mediamodel.Asset{}
	}
	asset.Status = status
	asset.Error = detail
	asset.UpdatedAt = now
	snapshot := *asset

	targets := append([]chan mediamodel.Event(nil), s.subs[id]...)
	if status.Terminal() {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	event := mediamodel.Event{AssetID: id, Status: status, Detail: detail, Timestamp: now}
	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			log.Printf("[media] dropping event for slow subscriber asset=%s", id)
		}
		if status.Terminal() {
			close(ch)
		}
	}
	return snapshot
}

func (s *Service) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Service) clearCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func normalizedExt(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}
