package glasscore

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestGlassCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Glasscore Suite")
}
