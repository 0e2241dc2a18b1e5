package ai

import (
	"context"

	"google.golang.org/genai"
)

// FileState mirrors the remote processing state of an uploaded file.
type FileState string

const (
	FileStateProcessing FileState = "PROCESSING"
	FileStateActive     FileState = "ACTIVE"
	FileStateFailed     FileState = "FAILED"
	FileStateUnknown    FileState = "UNKNOWN"
)

// RemoteFile is the slice of the vendor file resource the media pipeline
// needs: identity for polling, URI for attachment, state for the loop.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
	Detail   string
}

// Upload pushes a local file to the vendor file store and returns the remote
// handle together with its initial processing state.
func (s *Service) Upload(ctx context.Context, credential, path, mimeType string) (RemoteFile, error) {
	client, err := s.clientFor(ctx, credential)
	if err != nil {
		return RemoteFile{}, err
	}

	file, err := client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return RemoteFile{}, classify("upload", err)
	}

	return remoteFileFrom(file), nil
}

// FileStatus fetches the current remote state of an uploaded file.
func (s *Service) FileStatus(ctx context.Context, credential, name string) (RemoteFile, error) {
	client, err := s.clientFor(ctx, credential)
	if err != nil {
		return RemoteFile{}, err
	}

	file, err := client.Files.Get(ctx, name, nil)
	if err != nil {
		return RemoteFile{}, classify("file status", err)
	}

	return remoteFileFrom(file), nil
}

// DeleteFile removes an uploaded file from the vendor store.
func (s *Service) DeleteFile(ctx context.Context, credential, name string) error {
	client, err := s.clientFor(ctx, credential)
	if err != nil {
		return err
	}

	if _, err := client.Files.Delete(ctx, name, nil); err != nil {
		return classify("file delete", err)
	}
	return nil
}

func remoteFileFrom(file *genai.File) RemoteFile {
	rf := RemoteFile{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
	}

	switch file.State {
	case genai.FileStateProcessing:
		rf.State = FileStateProcessing
	case genai.FileStateActive:
		rf.State = FileStateActive
	case genai.FileStateFailed:
		rf.State = FileStateFailed
	default:
		rf.State = FileStateUnknown
	}

	if file.Error != nil {
		rf.Detail = file.Error.Message
	}
	return rf
}
