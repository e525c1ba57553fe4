package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/models"
)

type DeviceRepository interface {
	FindDevice(ctx context.Context, id string) (*models.Device, error)
	CreateDevice(ctx context.Context, d *models.Device) error
	SaveDevice(ctx context.Context, d *models.Device) error
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// DeviceSpec is a validated provisioning request.
type DeviceSpec struct {
	ID     string
	Secret string
	Make   *string
	Model  *string
}

// NewDeviceSpec trims its inputs and rejects a blank id or secret. Empty
// make and model are stored as NULL.
func NewDeviceSpec(id, secret, make, model string) (DeviceSpec, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeviceSpec{}, apperr.Invalid("id", "is required")
	}
	if secret == "" {
		return DeviceSpec{}, apperr.Invalid("secret", "is required")
	}
	return DeviceSpec{
		ID:     id,
		Secret: secret,
		Make:   optional(make),
		Model:  optional(model),
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Invalidator forgets cached state tied to a device's credential.
type Invalidator interface {
	Invalidate(deviceID string)
}

// Registry maps device ids to their stored credential verifiers.
type Registry struct {
	repo        DeviceRepository
	verifier    Verifier
	invalidates []Invalidator
}

func NewRegistry(repo DeviceRepository, verifier Verifier) *Registry {
	return &Registry{repo: repo, verifier: verifier}
}

// OnRotate registers inv to be told whenever Provision replaces a
// device's secret. Call it during wiring, before serving requests.
func (r *Registry) OnRotate(inv Invalidator) {
	r.invalidates = append(r.invalidates, inv)
}

// ResolveCredential returns the stored verifier, or ErrUnknownDevice.
func (r *Registry) ResolveCredential(ctx context.Context, deviceID string) (string, error) {
	d, err := r.repo.FindDevice(ctx, deviceID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", apperr.ErrUnknownDevice
	}
	if err != nil {
		return "", err
	}
	return d.CredentialVerifier, nil
}

// Devices lists every registered device, never nil.
func (r *Registry) Devices(ctx context.Context) ([]models.Device, error) {
	list, err := r.repo.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Device{}
	}
	return list, nil
}

// Register creates a new device; an existing id is a validation error.
func (r *Registry) Register(ctx context.Context, spec DeviceSpec) (*models.Device, error) {
	d, err := r.build(spec)
	if err != nil {
		return nil, err
	}
	if err := r.repo.CreateDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Provision creates the device or replaces its secret and vehicle details.
func (r *Registry) Provision(ctx context.Context, spec DeviceSpec) (*models.Device, error) {
	d, err := r.build(spec)
	if err != nil {
		return nil, err
	}
	if err := r.repo.SaveDevice(ctx, d); err != nil {
		return nil, err
	}
	for _, inv := range r.invalidates {
		inv.Invalidate(d.ID)
	}
	return d, nil
}

func (r *Registry) build(spec DeviceSpec) (*models.Device, error) {
	hash, err := r.verifier.Hash(spec.Secret)
	if err != nil {
		return nil, fmt.Errorf("hash secret for %s: %w", spec.ID, err)
	}
	return &models.Device{
		ID:                 spec.ID,
		CredentialVerifier: hash,
		Make:               spec.Make,
		Model:              spec.Model,
	}, nil
}
