package dto

import "encoding/json"

// CreateSchoolRequest is the body of POST /schools.
type CreateSchoolRequest struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Location        string          `json:"location" validate:"max=255"`
	Region          string          `json:"region" validate:"max=100"`
	Tier            int             `json:"tier" validate:"gte=0,lte=10"`
	AcquiredDate    *string         `json:"acquired_date"`
	Status          string          `json:"status" validate:"omitempty,oneof=active inactive"`
	StorageFolder   *string         `json:"storage_folder"`
	ClassroomConfig json.RawMessage `json:"classroom_config"`
}

// UpdateSchoolRequest carries a partial school update.
type UpdateSchoolRequest struct {
	Name            *string         `json:"name" validate:"omitempty,min=1,max=255"`
	Location        *string         `json:"location" validate:"omitempty,max=255"`
	Region          *string         `json:"region" validate:"omitempty,max=100"`
	Tier            *int            `json:"tier" validate:"omitempty,gte=0,lte=10"`
	AcquiredDate    *string         `json:"acquired_date"`
	Status          *string         `json:"status" validate:"omitempty,oneof=active inactive"`
	StorageFolder   *string         `json:"storage_folder"`
	ClassroomConfig json.RawMessage `json:"classroom_config"`
}
