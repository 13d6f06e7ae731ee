// Package docker runs the BigQuery emulator in Docker for integration tests
// and local development.
//
// The emulator speaks the BigQuery REST API, so a bigquery.Client pointed at
// Endpoint (authentication disabled) runs queries and reads table metadata
// exactly as it does against BigQuery. Datasets and tables can be seeded; they
// are written to the emulator data file.
//
// # Usage Example
//
//	container := docker.NewWithOptions(docker.DockerOptions{
//		ProjectID: "sapi-1",
//		Datasets:  []docker.Dataset{{ID: "WORKSPACE_1"}},
//	})
//
//	ctx := context.Background()
//	defer container.Stop(ctx)
//
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	endpoint, _ := container.Endpoint()
//	client, _ := bigquery.NewClient(ctx, bigquery.ClientOptions{
//		ProjectID: container.ProjectID(),
//		Dataset:   "WORKSPACE_1",
//		Endpoint:  endpoint,
//	})
//	defer client.Close()
package docker
