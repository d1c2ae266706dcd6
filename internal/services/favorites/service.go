package favorites

import (
	"context"
	"strings"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var ErrInvalidInput = errors.New("invalid input")

type Repository interface {
	ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error)
	AddFavoriteRoute(ctx context.Context, rec models.RouteRecord) (*models.RouteRecord, error)
	DeleteFavoriteRoute(ctx context.Context, userID, routeID string) error
	SetFCMToken(ctx context.Context, userID, token string) error
	UpsertUser(ctx context.Context, userID string, attrs map[string]any) error
}

type CoordinateInput struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type RouteInput struct {
	Name               string          `json:"name" validate:"required,max=120"`
	Origin             CoordinateInput `json:"origin"`
	Destination        CoordinateInput `json:"destination"`
	OriginAddress      string          `json:"originAddress" validate:"max=512"`
	DestinationAddress string          `json:"destinationAddress" validate:"max=512"`
}

type TokenInput struct {
	Token string `json:"token" validate:"max=4096"`
}

type ProfileInput struct {
	Attributes map[string]any `json:"attributes" validate:"max=64"`
}

// reserved keys live in their own columns
var reservedAttributes = []string{"id", "fcmToken", "fcm_token"}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func New(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) ListRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListFavoriteRoutes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*models.RouteRecord{}
	}
	return recs, nil
}

func (s *Service) AddRoute(ctx context.Context, userID string, in RouteInput) (*models.RouteRecord, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	name := in.Name
	return s.repo.AddFavoriteRoute(ctx, models.RouteRecord{
		UserID:             userID,
		Name:               &name,
		OriginLat:          in.Origin.Lat,
		OriginLng:          in.Origin.Lng,
		DestinationLat:     in.Destination.Lat,
		DestinationLng:     in.Destination.Lng,
		OriginAddress:      in.OriginAddress,
		DestinationAddress: in.DestinationAddress,
	})
}

func (s *Service) DeleteRoute(ctx context.Context, userID, routeID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if routeID == "" {
		return errors.Wrap(ErrInvalidInput, "routeId is required")
	}
	return s.repo.DeleteFavoriteRoute(ctx, userID, routeID)
}

// SetFCMToken registers the device token; an empty token unregisters it.
func (s *Service) SetFCMToken(ctx context.Context, userID string, in TokenInput) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return errors.Wrap(ErrInvalidInput, err.Error())
	}
	return s.repo.SetFCMToken(ctx, userID, strings.TrimSpace(in.Token))
}

// UpdateProfile merges in.Attributes into the user's stored attributes,
// creating the user on first contact.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return errors.Wrap(ErrInvalidInput, err.Error())
	}
	for _, k := range reservedAttributes {
		if _, ok := in.Attributes[k]; ok {
			return errors.Wrapf(ErrInvalidInput, "attribute %q is reserved", k)
		}
	}
	return s.repo.UpsertUser(ctx, userID, in.Attributes)
}

func checkUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Wrap(ErrInvalidInput, "userId is required")
	}
	return nil
}
