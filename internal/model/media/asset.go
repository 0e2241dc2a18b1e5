package media

import "time"

// Kind 媒体类型
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status 媒体资源的处理状态
type Status string

const (
	StatusUnset      Status = "unset"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status can no longer advance.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Asset 上传后的媒体资源。图片同步就绪并在内存中保留原始字节，
// 视频经过 uploading → processing → ready/failed 的远端处理流程。
type Asset struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`
	FileName   string `json:"fileName"`
	MIMEType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RemoteName string `json:"remoteName,omitempty"`
	RemoteURI  string `json:"remoteUri,omitempty"`
	Error      string `json:"error,omitempty"`

	// Data holds image bytes for inline sending. Never serialized.
	Data []byte `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ready reports whether the asset may be attached to a request.
func (a Asset) Ready() bool {
	return a.Status == StatusReady
}

// Event 推送给订阅者的状态变更通知
type Event struct {
	AssetID   string    `json:"assetId"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
