package mocks

import (
	"context"

	"fairytale-server/internal/repository"
	"fairytale-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockSegmentGateway is a mock type for the SegmentGateway type
type MockSegmentGateway struct {
	mock.Mock
}

// FetchStory provides a mock function with given fields: ctx, storyID
func (_m *MockSegmentGateway) FetchStory(ctx context.Context, storyID string) (*models.Story, error) {
	ret := _m.Called(ctx, storyID)

	var r0 *models.Story
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.Story); ok {
		r0 = rf(ctx, storyID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}
	return r0, ret.Error(1)
}

// FetchLatestSegment provides a mock function with given fields: ctx, storyID
func (_m *MockSegmentGateway) FetchLatestSegment(ctx context.Context, storyID string) (*models.Segment, error) {
	ret := _m.Called(ctx, storyID)

	var r0 *models.Segment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Segment)
	}
	return r0, ret.Error(1)
}

// FetchCharacters provides a mock function with given fields: ctx, storyID, userID
func (_m *MockSegmentGateway) FetchCharacters(ctx context.Context, storyID string, userID string) ([]models.Character, error) {
	ret := _m.Called(ctx, storyID, userID)

	var r0 []models.Character
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Character)
	}
	return r0, ret.Error(1)
}

// NextPosition provides a mock function with given fields: ctx, storyID
func (_m *MockSegmentGateway) NextPosition(ctx context.Context, storyID string) (int, error) {
	ret := _m.Called(ctx, storyID)
	return ret.Int(0), ret.Error(1)
}

// InsertSegment provides a mock function with given fields: ctx, segment
func (_m *MockSegmentGateway) InsertSegment(ctx context.Context, segment *models.Segment) (*models.Segment, error) {
	ret := _m.Called(ctx, segment)

	var r0 *models.Segment
	if rf, ok := ret.Get(0).(func(context.Context, *models.Segment) *models.Segment); ok {
		r0 = rf(ctx, segment)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Segment)
	}
	return r0, ret.Error(1)
}

// AttachImageURL provides a mock function with given fields: ctx, segmentID, imageURL
func (_m *MockSegmentGateway) AttachImageURL(ctx context.Context, segmentID string, imageURL string) error {
	ret := _m.Called(ctx, segmentID, imageURL)
	return ret.Error(0)
}

// NewMockSegmentGateway creates a new instance of MockSegmentGateway. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSegmentGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSegmentGateway {
	m := &MockSegmentGateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ repository.SegmentGateway = (*MockSegmentGateway)(nil)
