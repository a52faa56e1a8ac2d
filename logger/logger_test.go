package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/co2pipe/logger"
)

var _ = Describe("Logger", func() {
	log := logger.NewLogger("co2pipe-test", "debug", false)

	It("Should have `co2pipe-test` as service name", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)

		log.Info("Testing")
		var actual map[string]interface{}
		json.Unmarshal(logOutput.Bytes(), &actual)

		Expect(actual["service"]).To(Equal("co2pipe-test"))
	})

	It("Should have info as log level", func() {
		var actual map[string]interface{}
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)

		log.Info("Testing")
		json.Unmarshal(logOutput.Bytes(), &actual)

		Expect(actual["level"]).To(Equal("info"))
	})

	It("Should have warn as log level", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)

		log.Warn("Testing")
		var actual map[string]interface{}
		json.Unmarshal(logOutput.Bytes(), &actual)

		Expect(actual["level"]).To(Equal("warning"))
	})

	It("Should have `Testing` as msg", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)

		log.Info("Testing")
		var actual map[string]interface{}
		json.Unmarshal(logOutput.Bytes(), &actual)

		Expect(actual["msg"]).To(Equal("Testing"))
	})
})
