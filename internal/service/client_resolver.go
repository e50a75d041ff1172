package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

// Recognized country prefixes for client phone numbers.
var recognizedPhonePrefixes = []string{"+998"}

const minPhoneLength = 12

type clientStore interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	FindByPhone(ctx context.Context, phone string, limit int) ([]models.Client, error)
	SearchByName(ctx context.Context, name string, limit int) ([]models.Client, error)
	Create(ctx context.Context, client *models.Client) error
}

// CreateClientRequest is the draft for a new customer record.
type CreateClientRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address"`
	Language string `json:"language" validate:"omitempty,oneof=uz ru en"`
}

// ClientResolver finds or creates the customer record a request is filed
// against. Uniqueness of the phone number is enforced by storage, not here:
// concurrent creations surface as ErrClientExists instead of duplicates.
type ClientResolver struct {
	repo      clientStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClientResolver constructs a resolver.
func NewClientResolver(repo clientStore, validate *validator.Validate, logger *zap.Logger) *ClientResolver {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientResolver{repo: repo, validator: validate, logger: logger}
}

// Resolve returns the clients matching the criteria, best match first. An
// empty result is a routing outcome for the caller, not an error.
func (r *ClientResolver) Resolve(ctx context.Context, criteria models.ClientCriteria) ([]models.Client, error) {
	if err := r.validator.Struct(criteria); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid search criteria")
	}

	value := strings.TrimSpace(criteria.Value)
	switch criteria.Method {
	case models.SearchByPhone:
		clients, err := r.repo.FindByPhone(ctx, value, criteria.Limit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search clients by phone")
		}
		return clients, nil
	case models.SearchByName:
		clients, err := r.repo.SearchByName(ctx, value, criteria.Limit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search clients by name")
		}
		return clients, nil
	case models.SearchByID:
		client, err := r.repo.FindByID(ctx, value)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
		}
		return []models.Client{*client}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown search method")
	}
}

// Create validates the draft and inserts a new client.
func (r *ClientResolver) Create(ctx context.Context, req CreateClientRequest) (*models.Client, error) {
	if err := r.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client draft")
	}

	phone := normalizePhone(req.Phone)
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = "uz"
	}

	client := &models.Client{
		FullName: strings.TrimSpace(req.FullName),
		Phone:    phone,
		Address:  strings.TrimSpace(req.Address),
		Language: language,
		Active:   true,
	}
	if err := r.repo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' || r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

func validatePhone(phone string) *appErrors.Error {
	if len(phone) < minPhoneLength {
		return appErrors.Clone(appErrors.ErrValidation, "phone number is too short")
	}
	for _, prefix := range recognizedPhonePrefixes {
		if strings.HasPrefix(phone, prefix) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "phone number must start with a recognized country prefix")
}
