// Package testing provides a reusable conformance suite for metadata.Store
// implementations. It tests the interface contract, not implementation
// details, so every backend runs the same checks.
package testing

import (
	"bytes"
	"sync"
	"testing"

	"github.com/robot-o/rudelblinken-go/pkg/metadata"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is the conformance suite for metadata.Store
// implementations.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh Store instance for each test. This ensures
	// test isolation.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("MissingKey", suite.testMissingKey)
	t.Run("RoundTrip", suite.testRoundTrip)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("EmptyValue", suite.testEmptyValue)
	t.Run("ValueSizeLimit", suite.testValueSizeLimit)
	t.Run("ReturnedValueIsACopy", suite.testReturnedValueIsACopy)
	t.Run("ConcurrentWritersSameKey", suite.testConcurrentWritersSameKey)
}

func (suite *StoreTestSuite) testMissingKey(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	_, err := store.ReadMetadata("missing")
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrMetadataNotFound),
		"absent key must be NotFound, not an IO error, got: %v", err)
}

func (suite *StoreTestSuite) testRoundTrip(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	value := []byte{0x00, 0x01, 0xFE, 0xFF}
	require.NoError(t, store.WriteMetadata("first_block", value))

	got, err := store.ReadMetadata("first_block")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	require.NoError(t, store.WriteMetadata("k", []byte("old")))
	require.NoError(t, store.WriteMetadata("k", []byte("new")))

	got, err := store.ReadMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func (suite *StoreTestSuite) testEmptyValue(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	require.NoError(t, store.WriteMetadata("empty", []byte{}))

	got, err := store.ReadMetadata("empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testValueSizeLimit(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	// Exactly at the limit is fine.
	atLimit := make([]byte, metadata.MaxValueSize)
	require.NoError(t, store.WriteMetadata("at-limit", atLimit))

	// One byte over is an IO error and must not clobber existing data.
	require.NoError(t, store.WriteMetadata("victim", []byte("intact")))
	over := make([]byte, metadata.MaxValueSize+1)
	err := store.WriteMetadata("victim", over)
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrMetadataIO))

	got, err := store.ReadMetadata("victim")
	require.NoError(t, err)
	assert.Equal(t, []byte("intact"), got)
}

func (suite *StoreTestSuite) testReturnedValueIsACopy(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	require.NoError(t, store.WriteMetadata("k", []byte("stable")))

	got, err := store.ReadMetadata("k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := store.ReadMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("stable"), again, "mutating a returned value must not affect the store")
}

func (suite *StoreTestSuite) testConcurrentWritersSameKey(t *testing.T) {
	store := suite.NewStore(t)
	defer store.Close()

	a := bytes.Repeat([]byte{0xAA}, 32)
	b := bytes.Repeat([]byte{0xBB}, 32)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.WriteMetadata("contended", a))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, store.WriteMetadata("contended", b))
	}()
	wg.Wait()

	got, err := store.ReadMetadata("contended")
	require.NoError(t, err)
	if !bytes.Equal(got, a) && !bytes.Equal(got, b) {
		t.Fatalf("read %x, want exactly one of the two written values, never a mix", got)
	}
}
