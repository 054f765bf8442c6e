package mongolocal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"

	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/prestonvasquez/servermon/description"
)

// TeardownFunc is a function that tears down resources used during testing.
type TeardownFunc func(t *testing.T)

type options struct {
	mongoClientOpts    *mongooptions.ClientOptions
	image              string
	replicaSet         string
	enableTestCommands bool
}

// Option is a function that configures New.
type Option func(*options)

// WithMongoClientOptions configures the mongo.Client options used to connect
func WithMongoClientOptions(opts *mongooptions.ClientOptions) Option {
	return func(o *options) {
		o.mongoClientOpts = opts
	}
}

// WithImage configures the Docker image used for the MongoDB container.
func WithImage(image string) Option {
	return func(o *options) {
		o.image = image
	}
}

// WithReplicaSet starts the server as the only member of the named replica
// set.
func WithReplicaSet(name string) Option {
	return func(o *options) {
		o.replicaSet = name
	}
}

// WithEnableTestCommands starts the server with enableTestCommands=1, which
// fail points require.
func WithEnableTestCommands() Option {
	return func(o *options) {
		o.enableTestCommands = true
	}
}

// Env describes a running test server.
type Env struct {
	addr description.Address
}

// Address is the "host:port" the server is reachable at from the test.
func (e *Env) Address() description.Address { return e.addr }

// ConnectionString is a direct connection string for the server.
func (e *Env) ConnectionString() string {
	return "mongodb://" + e.addr.String() + "/?directConnection=true"
}

// New creates a new MongoDB test container and returns a connected mongo.Client
// and a TeardownFunc to clean up resources.
func New(t *testing.T, ctx context.Context, optionFuncs ...Option) (*mongo.Client, TeardownFunc) {
	t.Helper()

	client, teardown, _ := NewWithEnv(t, ctx, optionFuncs...)

	return client, teardown
}

// NewWithEnv is New but also returns the container's Env. The test is skipped
// in -short mode or when no healthy Docker provider is available.
func NewWithEnv(t *testing.T, ctx context.Context, optionFuncs ...Option) (*mongo.Client, TeardownFunc, *Env) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	opts := &options{}
	for _, apply := range optionFuncs {
		apply(opts)
	}

	image := "mongo:latest"
	if opts.image != "" {
		image = opts.image
	}

	var customizers []testcontainers.ContainerCustomizer
	if opts.replicaSet != "" {
		customizers = append(customizers, mongodb.WithReplicaSet(opts.replicaSet))
	}

	if opts.enableTestCommands {
		customizers = append(customizers, testcontainers.WithCmdArgs("--setParameter", "enableTestCommands=1"))
	}

	mongolocalContainer, err := mongodb.Run(ctx, image, customizers...)
	require.NoError(t, err, "failed to start mongolocal container")

	tdFunc := func(t *testing.T) {
		t.Helper()

		require.NoError(t, testcontainers.TerminateContainer(mongolocalContainer),
			"failed to terminate mongolocal container")
	}

	host, err := mongolocalContainer.Host(ctx)
	if err != nil {
		tdFunc(t)
		t.Fatalf("failed to get container host: %s", err)
	}

	port, err := mongolocalContainer.MappedPort(ctx, "27017/tcp")
	if err != nil {
		tdFunc(t)
		t.Fatalf("failed to get mapped port: %s", err)
	}

	env := &Env{addr: description.Address(host + ":" + port.Port())}

	mopts := opts.mongoClientOpts
	if mopts == nil {
		mopts = mongooptions.Client()
	}

	// Users can't override the connection string.
	mopts = mopts.ApplyURI(env.ConnectionString())

	mongoClient, err := mongo.Connect(mopts)
	if err != nil {
		tdFunc(t)
		t.Fatalf("failed to connect to mongo: %s", err)
	}

	return mongoClient, func(t *testing.T) {
		t.Helper()

		require.NoError(t, mongoClient.Disconnect(ctx), "failed to disconnect mongo client")
		tdFunc(t)
	}, env
}
