package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/stretchr/testify/mock"
)

// MockACMClient implements clients.ACMAPI for tests.
type MockACMClient struct {
	mock.Mock
}

func (m *MockACMClient) ImportCertificate(ctx context.Context, params *acm.ImportCertificateInput, optFns ...func(*acm.Options)) (*acm.ImportCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.ImportCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) RequestCertificate(ctx context.Context, params *acm.RequestCertificateInput, optFns ...func(*acm.Options)) (*acm.RequestCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.RequestCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) ListCertificates(ctx context.Context, params *acm.ListCertificatesInput, optFns ...func(*acm.Options)) (*acm.ListCertificatesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.ListCertificatesOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.DescribeCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) DeleteCertificate(ctx context.Context, params *acm.DeleteCertificateInput, optFns ...func(*acm.Options)) (*acm.DeleteCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.DeleteCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) ListTagsForCertificate(ctx context.Context, params *acm.ListTagsForCertificateInput, optFns ...func(*acm.Options)) (*acm.ListTagsForCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.ListTagsForCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) AddTagsToCertificate(ctx context.Context, params *acm.AddTagsToCertificateInput, optFns ...func(*acm.Options)) (*acm.AddTagsToCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.AddTagsToCertificateOutput)
	return out, args.Error(1)
}

func (m *MockACMClient) RemoveTagsFromCertificate(ctx context.Context, params *acm.RemoveTagsFromCertificateInput, optFns ...func(*acm.Options)) (*acm.RemoveTagsFromCertificateOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*acm.RemoveTagsFromCertificateOutput)
	return out, args.Error(1)
}
