// Package mocks provides mock implementations for testing the gitgauge dispatch system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockQueue := mocks.NewMockQueueRepository(ctrl)
//	mockQueue.EXPECT().Read(gomock.Any(), gomock.Any()).Return(messages, nil)
package mocks

// Generate mock for QueueRepository interface from internal/core package.
// This creates MockQueueRepository with methods for all QueueRepository interface methods:
// Read, Delete, Archive, WaitForWake
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=queue_repository_mock.go github.com/gitgauge/gitgauge/internal/core QueueRepository

// Generate mock for AnalysisJobRepository interface from internal/core package.
// This creates MockAnalysisJobRepository with methods for all AnalysisJobRepository interface methods:
// Create, UpdateByQueueMessageID, GetByID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=analysis_job_repository_mock.go github.com/gitgauge/gitgauge/internal/core AnalysisJobRepository

// Generate mock for WorkerClient interface from internal/core package.
// This creates MockWorkerClient with methods for all WorkerClient interface methods:
// Forward, Poll
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=worker_client_mock.go github.com/gitgauge/gitgauge/internal/core WorkerClient

// Generate mock for DispatchStateStore interface from internal/core package.
// This creates MockDispatchStateStore with methods for all DispatchStateStore interface methods:
// MarkProcessed, LastProcessed
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dispatch_state_store_mock.go github.com/gitgauge/gitgauge/internal/core DispatchStateStore
