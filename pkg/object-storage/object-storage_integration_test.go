//go:build integration
// +build integration

// Integration testing for object-storage. Dapr must be booted up for this to run
package object_storage

import (
	"context"
	test_utils "edit-box/test-utils"
	"os"
	"testing"

	"github.com/dapr/go-sdk/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	DaprComponent = "object-store"
	// Name of the asset used to test download
	TestDownloadAssetKey = "testdl"
	// Name of the asset used to test deletion
	TestDeleteAssetKey = "testdelete"
)

type e2eTestSuite struct {
	suite.Suite
	client   client.Client
	objStore *ObjectStorage
	// Local file uploaded under every test key
	source string
}

func (s *e2eTestSuite) SetupSuite() {
	// Check if the sidecar is up
	daprClient, err := client.NewClient()
	if err != nil {
		s.FailNow("DAPR IS NOT RUNNING", err.Error())
	}
	s.client = daprClient
	s.objStore, err = NewDaprObjectStorage(daprClient, DaprComponent, 0)
	s.Require().NoError(err)
	s.source = test_utils.WriteFile(s.T(), "test.txt", []byte("edit-box integration test"))
	for _, key := range []string{TestDownloadAssetKey, TestDeleteAssetKey} {
		s.Require().NoError(s.objStore.Upload(context.Background(), s.source, key))
	}
}

func (s *e2eTestSuite) TearDownSuite() {
	s.objStore.CleanUp()
	_ = os.RemoveAll(s.objStore.assetsPath)
}

func (s *e2eTestSuite) TestDownload_Int() {
	path, err := s.objStore.Resolve(context.Background(), Scheme+TestDownloadAssetKey)
	s.Require().NoError(err)
	expected, err := test_utils.GetChecksum(s.source)
	s.Require().NoError(err)
	actual, err := test_utils.GetChecksum(path)
	s.Require().NoError(err)
	assert.Equal(s.T(), expected, actual)
}

func (s *e2eTestSuite) TestDownload_Int_NotExists() {
	_, err := s.objStore.Download(context.Background(), "notexists")
	assert.Error(s.T(), err)
}

func (s *e2eTestSuite) TestDelete_Int() {
	// Check that the file can be downloaded
	_, err := s.objStore.Download(context.Background(), TestDeleteAssetKey)
	s.Require().NoError(err)
	// Then delete it
	s.Require().NoError(s.objStore.Delete(context.Background(), TestDeleteAssetKey))
	// And check that it cannot be downloaded anymore
	_, err = s.objStore.Download(context.Background(), TestDeleteAssetKey)
	assert.Error(s.T(), err)
}

func TestE2ETestSuite(t *testing.T) {
	suite.Run(t, &e2eTestSuite{})
}
