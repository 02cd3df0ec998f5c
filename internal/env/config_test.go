package env_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/luma/svdrp/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfigWith()", func() {
		It("applies defaults", func() {
			conf, err := env.LoadConfigWith(context.Background(), "", envconfig.MapLookuper(nil))
			Expect(err).To(Succeed())

			Expect(conf.ServerIP).To(BeEmpty())
			Expect(conf.ServerPort).To(Equal(2001))
			Expect(conf.ConnectTimeout).To(Equal(2))
			Expect(conf.ReadTimeout).To(Equal(5))
			Expect(conf.Charset).To(Equal("UTF-8"))
			Expect(conf.LogLevel).To(Equal("info"))
		})

		It("reads the environment", func() {
			conf, err := env.LoadConfigWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
				"SVDRP_SERVER_IP":   "192.168.1.10",
				"SVDRP_SERVER_PORT": "6419",
				"SVDRP_CHARSET":     "ISO-8859-15",
			}))
			Expect(err).To(Succeed())

			Expect(conf.ServerIP).To(Equal("192.168.1.10"))
			Expect(conf.ServerPort).To(Equal(6419))
			Expect(conf.Charset).To(Equal("ISO-8859-15"))
		})

		It("lets the environment override the config file", func() {
			dir, err := os.MkdirTemp("", "svdrp")
			Expect(err).To(Succeed())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "svdrp.yaml")
			Expect(os.WriteFile(path, []byte("serverIp: 10.0.0.1\nserverPort: 2002\nreadTimeout: 9\n"), 0600)).To(Succeed())

			conf, err := env.LoadConfigWith(context.Background(), path, envconfig.MapLookuper(map[string]string{
				"SVDRP_SERVER_PORT": "6419",
			}))
			Expect(err).To(Succeed())

			Expect(conf.ServerIP).To(Equal("10.0.0.1"))
			Expect(conf.ServerPort).To(Equal(6419))
			Expect(conf.ReadTimeout).To(Equal(9))
			Expect(conf.ConnectTimeout).To(Equal(2))
		})

		It("fails on a missing config file", func() {
			_, err := env.LoadConfigWith(context.Background(), "/does/not/exist.yaml", envconfig.MapLookuper(nil))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("fails on a malformed value", func() {
			_, err := env.LoadConfigWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
				"SVDRP_SERVER_PORT": "lots",
			}))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("server port", func() {
		for _, port := range []string{"0", "-1", "65536", "70000"} {
			port := port

			It("rejects "+port, func() {
				_, err := env.LoadConfigWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
					"SVDRP_SERVER_PORT": port,
				}))
				Expect(errors.Is(err, env.ErrInvalidPort)).To(BeTrue())
			})
		}

		It("accepts the upper bound", func() {
			conf, err := env.LoadConfigWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
				"SVDRP_SERVER_PORT": "65535",
			}))
			Expect(err).To(Succeed())
			Expect(conf.ConnOptions().ServerPort).To(Equal(uint16(65535)))
		})
	})

	Describe("ConnOptions()", func() {
		It("converts timeouts to durations", func() {
			conf := &env.Config{ServerIP: "10.0.0.1", ServerPort: 2001, ConnectTimeout: 3, ReadTimeout: 7}

			options := conf.ConnOptions()
			Expect(options.ServerPort).To(Equal(uint16(2001)))
			Expect(options.ConnectTimeout).To(Equal(3 * time.Second))
			Expect(options.ReadTimeout).To(Equal(7 * time.Second))
		})
	})

	Describe("MakeLogger()", func() {
		It("accepts a level", func() {
			log, err := env.MakeLogger("debug")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(zapcore.DebugLevel)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("chatty")
			Expect(err).To(HaveOccurred())
		})
	})
})
