package stores

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// AddressDTO is the postal address of a store.
type AddressDTO struct {
	City    string `json:"city" validate:"required,max=64"`
	Street  string `json:"street" validate:"required,max=128"`
	Zipcode string `json:"zipcode" validate:"required,max=16"`
}

// StoreDTO exposes store data in API responses.
type StoreDTO struct {
	ID        uuid.UUID         `json:"id"`
	MemberID  uuid.UUID         `json:"member_id"`
	Name      string            `json:"name"`
	Address   AddressDTO        `json:"address"`
	Status    enums.StoreStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CreateStoreInput holds creation-time data for a new store.
type CreateStoreInput struct {
	Name    string     `json:"name" validate:"required,min=1,max=64"`
	Address AddressDTO `json:"address" validate:"required"`
}

// UpdateStoreInput carries the mutable store fields. Nil fields are left alone.
type UpdateStoreInput struct {
	Name    *string     `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Address *AddressDTO `json:"address,omitempty"`
}

// FromModel maps the persisted store into a DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:       m.ID,
		MemberID: m.MemberID,
		Name:     m.Name,
		Address: AddressDTO{
			City:    m.Address.City,
			Street:  m.Address.Street,
			Zipcode: m.Address.Zipcode,
		},
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ToModel prepares a closed store owned by memberID.
func (c CreateStoreInput) ToModel(memberID uuid.UUID) *models.Store {
	return &models.Store{
		MemberID: memberID,
		Name:     c.Name,
		Address:  c.Address.toModel(),
		Status:   enums.StoreStatusClosed,
	}
}

func (a AddressDTO) toModel() models.Address {
	return models.Address{
		City:    a.City,
		Street:  a.Street,
		Zipcode: a.Zipcode,
	}
}
