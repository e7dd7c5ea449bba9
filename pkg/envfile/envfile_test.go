package envfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/envfile"
)

func writeEnv(path, content string) {
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
}

func readEnv(path string) string {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

var _ = Describe("envfile", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), envfile.DefaultFile)
	})

	Describe("Set", func() {
		It("replaces an existing key in place", func() {
			writeEnv(path, "DIFY_API_KEY=old\nAGENT_NAME=lawyer\n")

			Expect(envfile.Set(path, "AGENT_NAME", "stewardess")).To(Succeed())
			Expect(readEnv(path)).To(Equal("DIFY_API_KEY=old\nAGENT_NAME=stewardess\n"))
		})

		It("replaces every line for a repeated key", func() {
			writeEnv(path, "VOICE=a\nOTHER=x\nVOICE=b\n")

			Expect(envfile.Set(path, "VOICE", "c")).To(Succeed())
			Expect(readEnv(path)).To(Equal("VOICE=c\nOTHER=x\nVOICE=c\n"))
		})

		It("does not match keys that merely share a prefix", func() {
			writeEnv(path, "DIFY_API_KEY_OLD=1\n")

			Expect(envfile.Set(path, "DIFY_API_KEY", "2")).To(Succeed())
			Expect(readEnv(path)).To(Equal("DIFY_API_KEY_OLD=1\nDIFY_API_KEY=2\n"))
		})

		It("appends a missing key, adding a newline if needed", func() {
			writeEnv(path, "# settings\nUSERNAME=alice")

			Expect(envfile.Set(path, "VOICE", "calm")).To(Succeed())
			Expect(readEnv(path)).To(Equal("# settings\nUSERNAME=alice\nVOICE=calm\n"))
		})

		It("refuses to create a missing file", func() {
			err := envfile.Set(path, "KEY", "value")
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())

			_, statErr := os.Stat(path)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("validates keys and values", func() {
			writeEnv(path, "")
			Expect(envfile.Set(path, "", "v")).To(MatchError(envfile.ErrKeyRequired))
			Expect(envfile.Set(path, "A=B", "v")).To(MatchError(envfile.ErrInvalidKey))
			Expect(envfile.Set(path, "A", "multi\nline")).To(MatchError(envfile.ErrInvalidValue))
		})

		It("preserves file permissions", func() {
			writeEnv(path, "A=1\n")
			Expect(os.Chmod(path, 0o640)).To(Succeed())

			Expect(envfile.Set(path, "A", "2")).To(Succeed())
			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o640)))
		})
	})

	Describe("Read", func() {
		It("parses assignments, comments and quotes", func() {
			writeEnv(path, "# comment\nDIFY_BASE_URL=https://api.dify.ai/v1/chat-messages\nAGENT_NAME=\"lawyer\"\n")

			env, err := envfile.Read(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(env).To(HaveKeyWithValue("DIFY_BASE_URL", "https://api.dify.ai/v1/chat-messages"))
			Expect(env).To(HaveKeyWithValue("AGENT_NAME", "lawyer"))
			Expect(env).To(HaveLen(2))
		})

		It("fails for a missing file", func() {
			_, err := envfile.Read(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		It("keeps variables already present in the environment", func() {
			GinkgoT().Setenv("DIFYVOICE_TEST_KEEP", "from-env")
			GinkgoT().Setenv("DIFYVOICE_TEST_NEW", "")
			Expect(os.Unsetenv("DIFYVOICE_TEST_NEW")).To(Succeed())
			writeEnv(path, "DIFYVOICE_TEST_KEEP=from-file\nDIFYVOICE_TEST_NEW=loaded\n")

			Expect(envfile.Load(path)).To(Succeed())
			Expect(os.Getenv("DIFYVOICE_TEST_KEEP")).To(Equal("from-env"))
			Expect(os.Getenv("DIFYVOICE_TEST_NEW")).To(Equal("loaded"))
		})
	})

	Describe("Apply", func() {
		It("overrides and reports changed keys", func() {
			GinkgoT().Setenv("DIFYVOICE_TEST_A", "1")
			GinkgoT().Setenv("DIFYVOICE_TEST_B", "same")

			changed, err := envfile.Apply(map[string]string{
				"DIFYVOICE_TEST_A": "2",
				"DIFYVOICE_TEST_B": "same",
			}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(ConsistOf("DIFYVOICE_TEST_A"))
			Expect(os.Getenv("DIFYVOICE_TEST_A")).To(Equal("2"))
		})
	})

	Describe("Watcher", func() {
		It("reloads after the file changes", func() {
			writeEnv(path, "AGENT_NAME=lawyer\n")

			changes := make(chan map[string]string, 4)
			w := envfile.NewWatcher(path, func(env map[string]string) {
				changes <- env
			}, envfile.WithDebounce(20*time.Millisecond))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			// Give the watcher a moment to register before writing.
			Eventually(func() map[string]string {
				Expect(envfile.Set(path, "AGENT_NAME", "stewardess")).To(Succeed())
				select {
				case env := <-changes:
					return env
				case <-time.After(200 * time.Millisecond):
					return nil
				}
			}, 5*time.Second).Should(HaveKeyWithValue("AGENT_NAME", "stewardess"))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("ignores other files in the directory", func() {
			writeEnv(path, "A=1\n")

			changes := make(chan map[string]string, 1)
			w := envfile.NewWatcher(path, func(env map[string]string) {
				changes <- env
			}, envfile.WithDebounce(10*time.Millisecond))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = w.Run(ctx) }()

			sibling := filepath.Join(filepath.Dir(path), "other.env")
			for range 5 {
				writeEnv(sibling, "B=2\n")
				time.Sleep(20 * time.Millisecond)
			}
			Consistently(changes, 200*time.Millisecond).ShouldNot(Receive())
		})
	})
})
