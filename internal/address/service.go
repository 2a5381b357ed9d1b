package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cartloop/cartloop-backend/pkg/db/models"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages the user's saved addresses. Orders never reference
// these rows directly; SnapshotInTx copies the fields into an immutable
// shipping address at placement time.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Update(ctx context.Context, id, userID uuid.UUID, input Input) (*models.Address, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	// SnapshotInTx copies a saved address into a shipping snapshot
	// inside the caller's transaction.
	SnapshotInTx(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*models.ShippingAddress, error)
	// SnapshotInlineInTx persists an inline shipping payload that was
	// never saved to the address book.
	SnapshotInlineInTx(ctx context.Context, tx *gorm.DB, input Input) (*models.ShippingAddress, error)
}

// Input carries the recipient fields shared by saved addresses and
// inline shipping payloads.
type Input struct {
	RecipientName string  `json:"recipient_name" validate:"required"`
	Phone         string  `json:"phone" validate:"required"`
	Line1         string  `json:"line1" validate:"required"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city" validate:"required"`
	State         string  `json:"state" validate:"required"`
	PostalCode    string  `json:"postal_code" validate:"required"`
	Country       string  `json:"country" validate:"required"`
}

type service struct {
	repo Repository
}

// NewService wires an address service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	address := &models.Address{
		ID:            uuid.New(),
		UserID:        userID,
		RecipientName: input.RecipientName,
		Phone:         input.Phone,
		Line1:         input.Line1,
		Line2:         input.Line2,
		City:          input.City,
		State:         input.State,
		PostalCode:    input.PostalCode,
		Country:       input.Country,
	}
	if err := s.repo.Create(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return address, nil
}

func (s *service) Get(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	address, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return address, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	addresses, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

func (s *service) Update(ctx context.Context, id, userID uuid.UUID, input Input) (*models.Address, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	address, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	address.RecipientName = input.RecipientName
	address.Phone = input.Phone
	address.Line1 = input.Line1
	address.Line2 = input.Line2
	address.City = input.City
	address.State = input.State
	address.PostalCode = input.PostalCode
	address.Country = input.Country

	if err := s.repo.Update(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
	}
	return address, nil
}

func (s *service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	affected, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

func (s *service) SnapshotInTx(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*models.ShippingAddress, error) {
	repo := s.repo.WithTx(tx)

	address, err := repo.FindByIDAndUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}

	snapshot := &models.ShippingAddress{
		ID:            uuid.New(),
		RecipientName: address.RecipientName,
		Phone:         address.Phone,
		Line1:         address.Line1,
		Line2:         address.Line2,
		City:          address.City,
		State:         address.State,
		PostalCode:    address.PostalCode,
		Country:       address.Country,
	}
	if err := repo.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping snapshot")
	}
	return snapshot, nil
}

func (s *service) SnapshotInlineInTx(ctx context.Context, tx *gorm.DB, input Input) (*models.ShippingAddress, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	snapshot := &models.ShippingAddress{
		ID:            uuid.New(),
		RecipientName: input.RecipientName,
		Phone:         input.Phone,
		Line1:         input.Line1,
		Line2:         input.Line2,
		City:          input.City,
		State:         input.State,
		PostalCode:    input.PostalCode,
		Country:       input.Country,
	}
	if err := s.repo.WithTx(tx).CreateSnapshot(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping snapshot")
	}
	return snapshot, nil
}

func validateInput(input Input) error {
	required := map[string]string{
		"recipient_name": input.RecipientName,
		"phone":          input.Phone,
		"line1":          input.Line1,
		"city":           input.City,
		"state":          input.State,
		"postal_code":    input.PostalCode,
		"country":        input.Country,
	}
	missing := make([]string, 0)
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required address fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}
