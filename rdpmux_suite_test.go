package rdpmux

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRdpmuxIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rdpmux cross-component integration")
}
