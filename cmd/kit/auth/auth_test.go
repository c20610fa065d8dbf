package authcmder

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/kcterala/kit/pkg/auth"
	"github.com/kcterala/kit/pkg/cmdenv"
	"github.com/kcterala/kit/pkg/credentials"
)

func newTestCmd(args ...string) (*cobra.Command, *bytes.Buffer) {
	cmd := NewAuthCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.PersistentFlags().String("config-dir", "", "Override the kit config directory")
	cmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	cmd.SetArgs(args)
	return cmd, out
}

var _ = Describe("Auth Command", func() {
	var (
		tmpDir      string
		store       *credentials.FileStore
		origLogin   func(context.Context, *cmdenv.Env, io.Writer) (string, error)
		origReadKey func() (string, error)
		logins      int
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "auth-test-*")
		Expect(err).NotTo(HaveOccurred())
		store, err = credentials.NewFileStore(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origLogin = loginFn
		origReadKey = readAPIKeyFn
		logins = 0
		loginFn = func(_ context.Context, env *cmdenv.Env, out io.Writer) (string, error) {
			logins++
			_, _ = io.WriteString(out, "Enter this code: TEST-CODE\n")
			err := env.Store.Save(credentials.Update{
				Token:    credentials.String("ghu_fromlogin"),
				Username: credentials.String("octocat"),
			})
			return "ghu_fromlogin", err
		}
	})

	AfterEach(func() {
		loginFn = origLogin
		readAPIKeyFn = origReadKey
		os.RemoveAll(tmpDir)
	})

	Describe("NewAuthCmd", func() {
		It("creates a command with expected subcommands", func() {
			cmd := NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth"))
			Expect(cmd.Short).NotTo(BeEmpty())

			var names []string
			for _, c := range cmd.Commands() {
				names = append(names, c.Name())
			}
			Expect(names).To(ConsistOf("login", "status", "token", "logout", "openai"))
		})
	})

	Describe("login", func() {
		It("runs the device flow and reports the account", func() {
			cmd, out := newTestCmd("login", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())

			Expect(logins).To(Equal(1))
			Expect(out.String()).To(ContainSubstring("Enter this code: TEST-CODE"))
			Expect(out.String()).To(ContainSubstring("Logged in as octocat"))

			rec, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Token).To(Equal("ghu_fromlogin"))
		})

		It("propagates a denied login", func() {
			loginFn = func(context.Context, *cmdenv.Env, io.Writer) (string, error) {
				return "", auth.ErrDenied
			}

			cmd, _ := newTestCmd("login", "--config-dir", tmpDir)
			err := cmd.Execute()
			Expect(errors.Is(err, auth.ErrDenied)).To(BeTrue())

			_, err = store.Load()
			Expect(errors.Is(err, credentials.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("status", func() {
		It("fails with a hint when not logged in", func() {
			cmd, _ := newTestCmd("status", "--config-dir", tmpDir)
			err := cmd.Execute()
			Expect(err).To(MatchError(ContainSubstring("not logged in")))
			Expect(errors.GetAllHints(err)).To(ContainElement(ContainSubstring("kit auth login")))
		})

		It("shows the account with masked secrets", func() {
			Expect(store.Save(credentials.Update{
				Token:        credentials.String("ghu_secretvalue"),
				Username:     credentials.String("octocat"),
				OpenAIAPIKey: credentials.String("sk-secretvalue"),
			})).To(Succeed())

			cmd, out := newTestCmd("status", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())

			Expect(out.String()).To(ContainSubstring("Logged in to github.com as octocat"))
			Expect(out.String()).To(ContainSubstring("ghu_********"))
			Expect(out.String()).NotTo(ContainSubstring("secretvalue"))
			Expect(out.String()).To(ContainSubstring(filepath.Join(tmpDir, "config.json")))
		})

		It("surfaces a corrupt config file", func() {
			Expect(os.WriteFile(store.Path(), []byte("{"), 0o600)).To(Succeed())

			cmd, _ := newTestCmd("status", "--config-dir", tmpDir)
			err := cmd.Execute()
			Expect(errors.Is(err, credentials.ErrCorrupt)).To(BeTrue())
		})
	})

	Describe("token", func() {
		It("prints the cached token without logging in", func() {
			Expect(store.Save(credentials.Update{Token: credentials.String("ghu_cached")})).To(Succeed())

			cmd, out := newTestCmd("token", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(Equal("ghu_cached\n"))
			Expect(logins).To(BeZero())
		})

		It("logs in when no token is stored", func() {
			cmd, out := newTestCmd("token", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(HaveSuffix("ghu_fromlogin\n"))
			Expect(logins).To(Equal(1))
		})

		It("does not log in over a corrupt file", func() {
			Expect(os.WriteFile(store.Path(), []byte("nope"), 0o600)).To(Succeed())

			cmd, _ := newTestCmd("token", "--config-dir", tmpDir)
			err := cmd.Execute()
			Expect(errors.Is(err, credentials.ErrCorrupt)).To(BeTrue())
			Expect(logins).To(BeZero())
		})
	})

	Describe("logout", func() {
		It("clears the token and keeps the OpenAI key", func() {
			Expect(store.Save(credentials.Update{
				Token:        credentials.String("ghu_x"),
				Username:     credentials.String("octocat"),
				OpenAIAPIKey: credentials.String("sk-keep"),
			})).To(Succeed())

			cmd, out := newTestCmd("logout", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Logged out"))

			rec, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Token).To(BeEmpty())
			Expect(rec.Username).To(BeEmpty())
			Expect(rec.OpenAIAPIKey).To(Equal("sk-keep"))
		})

		It("is a no-op when not logged in", func() {
			cmd, out := newTestCmd("logout", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Not logged in."))
		})
	})

	Describe("openai", func() {
		It("stores a piped API key", func() {
			originalStdin := os.Stdin
			reader, writer, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())
			_, err = writer.WriteString("sk-piped\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())
			os.Stdin = reader
			defer func() {
				os.Stdin = originalStdin
				_ = reader.Close()
			}()

			cmd, _ := newTestCmd("openai", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())

			rec, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.OpenAIAPIKey).To(Equal("sk-piped"))
		})

		It("rejects an empty key", func() {
			readAPIKeyFn = func() (string, error) { return "   ", nil }

			cmd, _ := newTestCmd("openai", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(MatchError(ContainSubstring("cannot be empty")))
		})

		It("removes the key with --remove", func() {
			Expect(store.Save(credentials.Update{
				Token:        credentials.String("ghu_keep"),
				OpenAIAPIKey: credentials.String("sk-old"),
			})).To(Succeed())

			cmd, _ := newTestCmd("openai", "--remove", "--config-dir", tmpDir)
			Expect(cmd.Execute()).To(Succeed())

			rec, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.OpenAIAPIKey).To(BeEmpty())
			Expect(rec.Token).To(Equal("ghu_keep"))
		})
	})
})

var _ = Describe("maskToken", func() {
	It("keeps a short prefix", func() {
		Expect(maskToken("ghu_abcdefgh")).To(Equal("ghu_********"))
		Expect(maskToken("abc")).To(Equal("***"))
	})
})
