package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/difyvoice/pkg/config"
)

func writeConfig(dir, data string) {
	Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600)).To(Succeed())
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(tmpDir, `version = 0

[dify]
base_url = "https://dify.example.com/v1/chat-messages"
user = "kiosk-7"
timeout = "30s"

[agent]
name = "lawyer"
username = "alice"
voice = "calm"
env_file = "/etc/difyvoice/.env"

[storage]
sqlite_path = "/tmp/metrics.sqlite"
postgres_dsn = "postgres://localhost/difyvoice"

[eventstream]
kafka_brokers = "k1:9092,k2:9092"
kafka_topic = "voice.metrics"

[api]
listen = ":9091"

[worker]
num_workers = 8
queue_size = 1024
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Dify.BaseURL).To(Equal("https://dify.example.com/v1/chat-messages"))
			Expect(cfg.Dify.User).To(Equal("kiosk-7"))
			Expect(cfg.Dify.Timeout).To(Equal("30s"))
			Expect(cfg.Agent.Name).To(Equal("lawyer"))
			Expect(cfg.Agent.Username).To(Equal("alice"))
			Expect(cfg.Agent.Voice).To(Equal("calm"))
			Expect(cfg.Agent.EnvFile).To(Equal("/etc/difyvoice/.env"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/metrics.sqlite"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/difyvoice"))
			Expect(cfg.EventStream.Brokers()).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.EventStream.KafkaTopic).To(Equal("voice.metrics"))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Worker.NumWorkers).To(Equal(uint(8)))
			Expect(cfg.Worker.QueueSize).To(Equal(uint(1024)))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(tmpDir, "[agent]\nname = \"stewardess\"\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Agent.Name).To(Equal("stewardess"))
			Expect(cfg.Agent.EnvFile).To(Equal(defaults.Agent.EnvFile))
			Expect(cfg.Dify.User).To(Equal(defaults.Dify.User))
			Expect(cfg.Dify.Timeout).To(Equal(defaults.Dify.Timeout))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Worker).To(Equal(defaults.Worker))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(tmpDir, "this is not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig(tmpDir, "version = 999\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 999")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk and loads it back", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Agent.Name = "lawyer"
			cfg.Storage.SQLitePath = "/data/metrics.sqlite"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			Expect(filepath.Join(tmpDir, "config.toml")).To(BeARegularFile())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("never writes an API key field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(config.NewDefaultConfig())).To(Succeed())

			data, err := os.ReadFile(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(ContainSubstring("api_key"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and gets a string key", func() {
			Expect(c.SetConfigValue("agent.name", "lawyer")).To(Succeed())

			val, err := c.GetConfigValue("agent.name")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("lawyer"))
		})

		It("sets and gets a uint key", func() {
			Expect(c.SetConfigValue("worker.num_workers", "6")).To(Succeed())

			val, err := c.GetConfigValue("worker.num_workers")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("6"))
		})

		It("validates durations", func() {
			Expect(c.SetConfigValue("dify.timeout", "90s")).To(Succeed())
			Expect(c.SetConfigValue("dify.timeout", "soon")).To(MatchError(ContainSubstring("invalid value for dify.timeout")))
			Expect(c.SetConfigValue("dify.timeout", "-1s")).To(MatchError(ContainSubstring("negative")))

			val, err := c.GetConfigValue("dify.timeout")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("90s"))
		})

		It("returns error for invalid uint value", func() {
			err := c.SetConfigValue("worker.queue_size", "lots")
			Expect(err).To(MatchError(ContainSubstring("invalid value for worker.queue_size")))
		})

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("dify.api_key")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("returns default values when no config file exists", func() {
			val, err := c.GetConfigValue("dify.user")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("livekit-agent"))

			val, err = c.GetConfigValue("storage.sqlite_path")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("agent.voice", "calm")).To(Succeed())
			Expect(c.SetConfigValue("api.listen", ":9999")).To(Succeed())

			val, err := c.GetConfigValue("agent.voice")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("calm"))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(14))
			Expect(keys[0]).To(Equal("dify.base_url"))
			Expect(keys[len(keys)-1]).To(Equal("worker.queue_size"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("dify")).To(BeFalse())
			Expect(config.IsValidConfigKey("sqlite_path")).To(BeFalse())
		})
	})
})

var _ = Describe("DifyConfig", func() {
	It("parses the timeout", func() {
		d, err := config.DifyConfig{Timeout: "45s"}.TimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(45 * time.Second))
	})

	It("defaults an empty timeout to five minutes", func() {
		d, err := config.DifyConfig{}.TimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(5 * time.Minute))
	})

	It("allows zero to disable the deadline", func() {
		d, err := config.DifyConfig{Timeout: "0"}.TimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeZero())
	})
})

var _ = Describe("SplitList", func() {
	It("trims entries and drops blanks", func() {
		Expect(config.SplitList(" a:1 , ,b:2,")).To(Equal([]string{"a:1", "b:2"}))
		Expect(config.SplitList("")).To(BeEmpty())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("dify.user")).To(Equal(defaults.Dify.User))
		Expect(v.GetDuration("dify.timeout")).To(Equal(5 * time.Minute))
		Expect(v.GetString("agent.env_file")).To(Equal(".env.local"))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
		Expect(v.GetUint("worker.queue_size")).To(Equal(defaults.Worker.QueueSize))
	})

	It("reads config file values over defaults", func() {
		writeConfig(tmpDir, "[agent]\nname = \"lawyer\"\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("agent.name")).To(Equal("lawyer"))
		Expect(v.GetString("agent.env_file")).To(Equal(".env.local"))
	})

	It("env vars take precedence over config file values", func() {
		writeConfig(tmpDir, "[agent]\nname = \"lawyer\"\n")
		GinkgoT().Setenv("DIFYVOICE_AGENT_NAME", "stewardess")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("agent.name")).To(Equal("stewardess"))
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		writeConfig(tmpDir, "[api]\nlisten = \":5555\"\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(":8081"))
	})

	It("AddStringFlag pulls name, shorthand, default and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var envFile string
		config.AddStringFlag(cmd, config.Flags, config.FlagEnvFile, &envFile)

		f := cmd.Flags().Lookup("env-file")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("e"))
		Expect(f.DefValue).To(Equal(".env.local"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagEnvFile].Description))
	})

	It("AddUintFlag registers worker settings with defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		var workers uint
		config.AddUintFlag(cmd, config.Flags, config.FlagNumWorkers, &workers)

		f := cmd.Flags().Lookup("workers")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("3"))
	})
})
