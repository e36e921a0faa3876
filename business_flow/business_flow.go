// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/hylacviet-media/app/dto"
	"github.com/amirphl/hylacviet-media/models"
)

// ClientMetadata holds client information attached to upload logs
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	AdminID   string `json:"admin_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetAdminID records the authenticated caller
func (cm *ClientMetadata) SetAdminID(adminID string) {
	cm.AdminID = adminID
}

// ToMediaUploadResponse converts a stored artifact to the upload response payload
func ToMediaUploadResponse(artifact models.StoredArtifact) dto.MediaUploadResponse {
	return dto.MediaUploadResponse{
		URL:       artifact.PublicURL,
		Filename:  artifact.Filename,
		SizeBytes: artifact.SizeBytes,
		MimeType:  artifact.MimeType,
		Width:     artifact.Width,
		Height:    artifact.Height,
		Checksum:  artifact.Checksum,
		CreatedAt: artifact.CreatedAt.Format(time.RFC3339),
	}
}
