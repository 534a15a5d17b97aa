package multiqueue_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMultiqueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Multiqueue Suite")
}
