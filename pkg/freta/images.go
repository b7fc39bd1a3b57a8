package freta

import (
	"context"
	"fmt"
	"net/http"
)

// ImagesService manages uploaded memory images.
type ImagesService struct {
	client *Client
}

// Formats lists the supported image formats, keyed by format identifier.
func (s *ImagesService) Formats(ctx context.Context) (map[string]string, error) {
	s.client.logger.Debug("image formats")
	var formats map[string]string
	if err := s.client.backend.RequestInto(ctx, http.MethodGet, "image_formats", nil, nil, &formats); err != nil {
		return nil, err
	}
	return formats, nil
}

// List returns images and their statuses. filter defaults to "my_images";
// SearchFilters lists the accepted values.
func (s *ImagesService) List(ctx context.Context, filter string) ([]Image, error) {
	if filter == "" {
		filter = "my_images"
	}
	s.client.logger.Debug("list images", "filter", filter)

	var images []Image
	body := map[string]string{"filter": filter}
	if err := s.client.backend.RequestInto(ctx, http.MethodPost, "list_images", body, nil, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// Status fetches the current state of a single image. An empty ownerID
// means the current user.
func (s *ImagesService) Status(ctx context.Context, imageID, ownerID string) (*Image, error) {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.client.logger.Debug("image status", "image_id", imageID, "owner_id", ownerID)

	var image Image
	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	if err := s.client.backend.RequestInto(ctx, http.MethodPost, "get_image", body, nil, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// Update sets metadata for an image. Only the user-specified machine name
// is updatable.
func (s *ImagesService) Update(ctx context.Context, imageID, ownerID, name string) (*Image, error) {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.client.logger.Debug("update image", "image_id", imageID, "owner_id", ownerID, "name", name)

	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	if name != "" {
		body["name"] = name
	}

	var image Image
	if err := s.client.backend.RequestInto(ctx, http.MethodPatch, "get_image", body, nil, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// Delete removes an image along with its report and other artifacts.
func (s *ImagesService) Delete(ctx context.Context, imageID, ownerID string) error {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return err
	}
	s.client.logger.Debug("delete image", "image_id", imageID, "owner_id", ownerID)

	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	return s.client.backend.RequestInto(ctx, http.MethodPost, "delete_image", body, nil, nil)
}

// Analyze queues an uploaded image for analysis (or re-analysis).
func (s *ImagesService) Analyze(ctx context.Context, imageID, ownerID string) error {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return err
	}
	s.client.logger.Debug("analyze image", "image_id", imageID, "owner_id", ownerID)

	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	return s.client.backend.RequestInto(ctx, http.MethodPost, "analyze", body, nil, nil)
}

// CancelAnalysis cancels a queued or running analysis.
func (s *ImagesService) CancelAnalysis(ctx context.Context, imageID, ownerID string) error {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return err
	}
	s.client.logger.Debug("cancel analysis", "image_id", imageID, "owner_id", ownerID)

	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	return s.client.backend.RequestInto(ctx, http.MethodPost, "cancel_analysis", body, nil, nil)
}

// UploadSAS obtains SAS URLs authorizing (only) the upload of an image and
// a kernel profile. The image is not queued for analysis; call Analyze with
// the returned image id after writing the data.
func (s *ImagesService) UploadSAS(ctx context.Context, name, imageType, region string) (*UploadToken, error) {
	s.client.logger.Debug("upload sas", "name", name, "image_type", imageType, "region", region)

	body := map[string]string{
		"machine_id": name,
		"image_type": imageType,
		"region":     region,
	}
	var token UploadToken
	if err := s.client.backend.RequestInto(ctx, http.MethodPost, "get_upload_token", body, nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Upload writes an image file (and optional kernel profile) to storage and
// submits it for analysis. profilePath may be empty.
func (s *ImagesService) Upload(ctx context.Context, name, imageType, region, imagePath, profilePath string) (*UploadResult, error) {
	s.client.logger.Debug("upload image",
		"name", name, "image_type", imageType, "region", region,
		"image", imagePath, "profile", profilePath)

	token, err := s.UploadSAS(ctx, name, imageType, region)
	if err != nil {
		return nil, err
	}

	if profilePath != "" {
		if err := s.client.blobUpload(ctx, token.Profile.SASURL, profilePath); err != nil {
			return nil, fmt.Errorf("upload profile: %w", err)
		}
	}
	if err := s.client.blobUpload(ctx, token.Image.SASURL, imagePath); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	ownerID, err := s.client.OwnerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Analyze(ctx, token.ImageID, ownerID); err != nil {
		return nil, err
	}
	return &UploadResult{ImageID: token.ImageID, OwnerID: ownerID}, nil
}

// monitorInterval is how often Monitor polls the image state.
var monitorInterval = DefaultWaitInterval

// Monitor polls an image until its analysis reaches a terminal state,
// surfacing state transitions through the sink. It returns the final image
// on success and an error when analysis fails. Monitor alone never gives
// up: bound it with the context if needed.
func (s *ImagesService) Monitor(ctx context.Context, imageID, ownerID string, sink Sink) (*Image, error) {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var last *Image
	err = Wait(ctx, func(ctx context.Context) (bool, string, error) {
		image, err := s.Status(ctx, imageID, ownerID)
		if err != nil {
			return false, "", err
		}
		last = image

		switch image.State {
		case StateReportAvailable:
			return true, "", nil
		case StateFailed:
			return false, "", fmt.Errorf("analysis of image %s failed", imageID)
		default:
			return false, string(image.State), nil
		}
	}, monitorInterval, sink)
	if err != nil {
		return nil, err
	}
	return last, nil
}
