package scanning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var _ = Describe("classifyGeminiError", func() {
	DescribeTable("rejected keys become credential errors",
		func(err error) {
			var credErr *CredentialError
			Expect(errors.As(classifyGeminiError(err), &credErr)).To(BeTrue())
		},
		Entry("invalid key message", errors.New("googleapi: Error 400: API key not valid. Please pass a valid API key.")),
		Entry("invalid key reason", fmt.Errorf("generating content: %w", errors.New("rpc error: API_KEY_INVALID"))),
		Entry("forbidden status", fmt.Errorf("generating content: %w", &googleapi.Error{Code: http.StatusForbidden})),
	)

	DescribeTable("other failures become service errors",
		func(err error) {
			var svcErr *ServiceError
			Expect(errors.As(classifyGeminiError(err), &svcErr)).To(BeTrue())
		},
		Entry("quota", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted"}),
		Entry("transport", errors.New("dial tcp: connection refused")),
	)
})

var _ = Describe("NewGemini", func() {
	It("should default the model name", func() {
		Expect(NewGemini("").modelName).To(Equal(DefaultGeminiModel))
	})

	It("should require a credential", func() {
		Expect(NewGemini("gemini-2.5-pro").RequiresCredential()).To(BeTrue())
	})
})

var _ = Describe("Gemini", func() {
	var (
		server *ghttp.Server
		model  *Gemini
		body   []byte
	)

	respond := func(status int, reply string) {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, MatchRegexp(`/models/gemini-test:generateContent$`)),
			func(w http.ResponseWriter, r *http.Request) {
				body, _ = io.ReadAll(r.Body)
			},
			ghttp.RespondWith(status, reply, http.Header{"Content-Type": []string{"application/json"}}),
		))
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		model = NewGemini("gemini-test", option.WithEndpoint(server.URL()))
		body = nil
	})

	AfterEach(func() {
		server.Close()
	})

	It("should send the image and prompt and return the reply text", func() {
		respond(http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"[]"}]}}]}`)

		reply, err := model.Generate(context.Background(), testPNG(), "read the sheet", "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("[]"))
		Expect(string(body)).To(ContainSubstring("image/png"))
		Expect(string(body)).To(ContainSubstring("read the sheet"))
	})

	It("should report an empty answer as a service error", func() {
		respond(http.StatusOK, `{"candidates":[]}`)

		_, err := model.Generate(context.Background(), testPNG(), "read the sheet", "key")
		var svcErr *ServiceError
		Expect(errors.As(err, &svcErr)).To(BeTrue())
		Expect(svcErr.Backend).To(Equal("gemini"))
	})

	It("should report a rejected key as a credential error", func() {
		respond(http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid. Please pass a valid API key.","status":"PERMISSION_DENIED"}}`)

		_, err := model.Generate(context.Background(), testPNG(), "read the sheet", "bad-key")
		var credErr *CredentialError
		Expect(errors.As(err, &credErr)).To(BeTrue())
	})
})
