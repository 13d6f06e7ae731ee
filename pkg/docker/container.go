package docker

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/gcloud"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultImage is the BigQuery emulator image started when no image is
	// configured.
	DefaultImage = "ghcr.io/goccy/bigquery-emulator:0.6.1"

	// DefaultProjectID is the emulated project when none is configured.
	DefaultProjectID = "test-project"
)

type (
	// DockerOptions represents options for running the BigQuery emulator in
	// Docker
	DockerOptions struct {
		// Image is the emulator image to run (default: DefaultImage)
		Image string

		// ProjectID is the emulated project (default: DefaultProjectID)
		ProjectID string

		// Datasets seed the emulated project.
		Datasets []Dataset
	}

	// Dataset is a dataset created when the emulator starts.
	Dataset struct {
		ID     string  `yaml:"id"`
		Tables []Table `yaml:"tables"`
	}

	// Table is a table created when the emulator starts, optionally with rows.
	Table struct {
		ID      string           `yaml:"id"`
		Columns []Column         `yaml:"columns"`
		Data    []map[string]any `yaml:"data,omitempty"`
	}

	// Column is a table column; Type is a legacy SQL type name such as
	// INTEGER or STRING.
	Column struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	seedProject struct {
		ID       string    `yaml:"id"`
		Datasets []Dataset `yaml:"datasets"`
	}

	seedFile struct {
		Projects []seedProject `yaml:"projects"`
	}

	// Container manages a BigQuery emulator container for integration tests
	// and local runs.
	Container struct {
		options   DockerOptions
		container *gcloud.GCloudContainer
	}
)

// New creates a new emulator container with default options
//
// Example:
//
//	container := docker.New()
//
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer container.Stop(ctx)
func New() *Container {
	return NewWithOptions(DockerOptions{})
}

// NewWithOptions creates a new emulator container with custom options
//
// Example:
//
//	container := docker.NewWithOptions(docker.DockerOptions{
//		ProjectID: "sapi-1",
//		Datasets:  []docker.Dataset{{ID: "WORKSPACE_1"}},
//	})
//
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer container.Stop(ctx)
func NewWithOptions(opts DockerOptions) *Container {
	if opts.Image == "" {
		opts.Image = DefaultImage
	}

	if opts.ProjectID == "" {
		opts.ProjectID = DefaultProjectID
	}

	return &Container{options: opts}
}

// Start starts the emulator and waits until it serves requests
func (c *Container) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	customizers := []testcontainers.ContainerCustomizer{
		gcloud.WithProjectID(c.options.ProjectID),
	}

	if len(c.options.Datasets) > 0 {
		data, err := c.seedData()
		if err != nil {
			return err
		}

		customizers = append(customizers, gcloud.WithDataYAML(bytes.NewReader(data)))
	}

	container, err := gcloud.RunBigQuery(ctx, c.options.Image, customizers...)
	if err != nil {
		return errors.Wrap(err, "failed to start BigQuery emulator")
	}

	c.container = container
	return nil
}

// seedData renders the emulator data file for the configured datasets.
func (c *Container) seedData() ([]byte, error) {
	data, err := yaml.Marshal(seedFile{
		Projects: []seedProject{{ID: c.options.ProjectID, Datasets: c.options.Datasets}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode emulator data")
	}

	return data, nil
}

// Stop stops and removes the emulator container
func (c *Container) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil // Already stopped
	}

	err := c.container.Terminate(ctx)
	c.container = nil

	if err != nil {
		return errors.Wrap(err, "failed to stop BigQuery emulator")
	}

	return nil
}

// Endpoint returns the API endpoint of the emulator, suitable for
// bigquery.ClientOptions.Endpoint and the --endpoint flag of the run command
func (c *Container) Endpoint() (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}

	return c.container.URI, nil
}

// ProjectID returns the emulated project
func (c *Container) ProjectID() string {
	return c.options.ProjectID
}

// IsRunning returns true if the container is currently running
func (c *Container) IsRunning() bool {
	return c.container != nil
}
