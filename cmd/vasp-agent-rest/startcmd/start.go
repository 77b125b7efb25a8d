/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/controller"
	"github.com/offchainapi/offchain-framework-go/pkg/framework/vasp"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/envelope"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/metrics"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport"
	httptransport "github.com/offchainapi/offchain-framework-go/pkg/offchain/transport/http"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport/ws"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "OFFCHAIN_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port of the admin API and of the http command endpoint." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "OFFCHAIN_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header of admin requests (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	// vasp address flag.
	vaspAddressFlagName      = "address"
	vaspAddressEnvKey        = "OFFCHAIN_ADDRESS"
	vaspAddressFlagShorthand = "d"
	vaspAddressFlagUsage     = "Bech32 encoded on-chain account address of this VASP." +
		" Alternatively, this can be set with the following environment variable: " + vaspAddressEnvKey

	// compliance key flag.
	complianceKeyFlagName  = "compliance-key-file"
	complianceKeyEnvKey    = "OFFCHAIN_COMPLIANCE_KEY_FILE"
	complianceKeyFlagUsage = "Path of the Ed25519 private JWK signing the envelopes of this VASP." +
		" Alternatively, this can be set with the following environment variable: " + complianceKeyEnvKey

	// peers file flag.
	peersFileFlagName      = "peers-file"
	peersFileEnvKey        = "OFFCHAIN_PEERS_FILE"
	peersFileFlagShorthand = "p"
	peersFileFlagUsage     = "Path of the YAML directory of peer VASPs." +
		" Alternatively, this can be set with the following environment variable: " + peersFileEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "OFFCHAIN_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database holding channels and payments. " +
		"Supported options: mem, leveldb. " +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databasePathFlagName      = "database-path"
	databasePathEnvKey        = "OFFCHAIN_DATABASE_PATH"
	databasePathFlagShorthand = "v"
	databasePathFlagUsage     = "The directory of the leveldb database. Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databasePathEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "OFFCHAIN_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// retry interval flag.
	retryIntervalFlagName  = "retry-interval"
	retryIntervalEnvKey    = "OFFCHAIN_RETRY_INTERVAL"
	retryIntervalFlagUsage = "Initial interval in seconds between retransmissions of unacknowledged requests." +
		" Default: " + retryIntervalDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + retryIntervalEnvKey
	retryIntervalDefault = "2"

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "OFFCHAIN_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send payment notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "OFFCHAIN_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// outbound transport flag.
	agentOutboundTransportFlagName      = "outbound-transport"
	agentOutboundTransportEnvKey        = "OFFCHAIN_OUTBOUND_TRANSPORT"
	agentOutboundTransportFlagShorthand = "o"
	agentOutboundTransportFlagUsage     = "Outbound transport type." +
		" This flag can be repeated, allowing for multiple transports." +
		" Possible values [http] [ws]. Defaults to http if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundTransportEnvKey

	// inbound host flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "OFFCHAIN_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Additional command endpoint listeners. Values should be in `scheme@url` format." +
		" This flag can be repeated, allowing to configure multiple inbound transports." +
		" Possible schemes [http] [ws]." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	httpProtocol      = "http"
	websocketProtocol = "ws"

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"

	metricsPath = "/metrics"
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("offchain-framework/agent-rest")
)

type agentParameters struct {
	server                  server
	host, token             string
	address                 string
	keyFile, peersFile      string
	tlsCertFile, tlsKeyFile string
	retryInterval           time.Duration
	webhookURLs             []string
	outboundTransports      []string
	inboundHosts            []string
	dbParam                 *dbParam
}

type dbParam struct {
	dbType  string
	path    string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(path string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) {
		if path == "" {
			return nil, errors.New("leveldb needs a database path")
		}

		return leveldb.NewProvider(path), nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) //nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start a VASP off-chain agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			vaspAddress, err := getUserSetVar(cmd, vaspAddressFlagName, vaspAddressEnvKey, false)
			if err != nil {
				return err
			}

			keyFile, err := getUserSetVar(cmd, complianceKeyFlagName, complianceKeyEnvKey, false)
			if err != nil {
				return err
			}

			peersFile, err := getUserSetVar(cmd, peersFileFlagName, peersFileEnvKey, false)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd)
			if err != nil {
				return err
			}

			retryInterval, err := getRetryInterval(cmd)
			if err != nil {
				return err
			}

			webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
			if err != nil {
				return err
			}

			outboundTransports, err := getUserSetVars(cmd, agentOutboundTransportFlagName,
				agentOutboundTransportEnvKey, true)
			if err != nil {
				return err
			}

			inboundHosts, err := getUserSetVars(cmd, agentInboundHostFlagName, agentInboundHostEnvKey, true)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:             server,
				host:               host,
				token:              token,
				address:            vaspAddress,
				keyFile:            keyFile,
				peersFile:          peersFile,
				dbParam:            dbParam,
				retryInterval:      retryInterval,
				webhookURLs:        webhookURLs,
				outboundTransports: outboundTransports,
				inboundHosts:       inboundHosts,
				tlsCertFile:        tlsCertFile,
				tlsKeyFile:         tlsKeyFile,
			}

			return startAgent(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParam.path, err = getUserSetVar(cmd, databasePathFlagName, databasePathEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getRetryInterval(cmd *cobra.Command) (time.Duration, error) {
	v, err := getUserSetVar(cmd, retryIntervalFlagName, retryIntervalEnvKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		v = retryIntervalDefault
	}

	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid retry interval %q", v)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)
	startCmd.Flags().StringP(vaspAddressFlagName, vaspAddressFlagShorthand, "", vaspAddressFlagUsage)
	startCmd.Flags().StringP(complianceKeyFlagName, "", "", complianceKeyFlagUsage)
	startCmd.Flags().StringP(peersFileFlagName, peersFileFlagShorthand, "", peersFileFlagUsage)

	// db
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databasePathFlagName, databasePathFlagShorthand, "", databasePathFlagUsage)
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	startCmd.Flags().StringP(retryIntervalFlagName, "", "", retryIntervalFlagUsage)
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// transports
	startCmd.Flags().StringSliceP(agentOutboundTransportFlagName, agentOutboundTransportFlagShorthand, []string{},
		agentOutboundTransportFlagUsage)
	startCmd.Flags().StringSliceP(agentInboundHostFlagName, agentInboundHostFlagShorthand, []string{},
		agentInboundHostFlagUsage)

	// tls
	startCmd.Flags().StringP(agentTLSCertFileFlagName, agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)
	startCmd.Flags().StringP(agentTLSKeyFileFlagName, agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func getOutboundTransports(outboundTransports []string) ([]transport.OutboundTransport, error) {
	if len(outboundTransports) == 0 {
		outboundTransports = []string{httpProtocol}
	}

	var transports []transport.OutboundTransport

	for _, outboundTransport := range outboundTransports {
		switch outboundTransport {
		case httpProtocol:
			outbound, err := httptransport.NewOutbound(httptransport.WithOutboundHTTPClient(&http.Client{}))
			if err != nil {
				return nil, fmt.Errorf("http outbound transport initialization failed: %w", err)
			}

			transports = append(transports, outbound)
		case websocketProtocol:
			transports = append(transports, ws.NewOutbound())
		default:
			return nil, fmt.Errorf("outbound transport [%s] not supported", outboundTransport)
		}
	}

	return transports, nil
}

type inbound interface {
	Start() error
	Stop(ctx context.Context) error
}

type httpInbound struct {
	server *http.Server
}

func (i *httpInbound) Start() error {
	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http inbound with address [%s] failed, cause:  %s", i.server.Addr, err)
		}
	}()

	return nil
}

func (i *httpInbound) Stop(ctx context.Context) error {
	return i.server.Shutdown(ctx)
}

func getInbounds(inboundHosts []string, handler transport.InboundMessageHandler) ([]inbound, error) {
	hosts, err := getInboundSchemeToURLMap(inboundHosts)
	if err != nil {
		return nil, fmt.Errorf("inbound host : %w", err)
	}

	var inbounds []inbound

	for scheme, host := range hosts {
		switch scheme {
		case httpProtocol:
			h, err := httptransport.NewInboundHandler(handler)
			if err != nil {
				return nil, err
			}

			inbounds = append(inbounds, &httpInbound{server: &http.Server{Addr: host, Handler: h}}) //nolint:gosec
		case websocketProtocol:
			in, err := ws.NewInbound(host, handler)
			if err != nil {
				return nil, err
			}

			inbounds = append(inbounds, in)
		default:
			return nil, fmt.Errorf("inbound transport [%s] not supported", scheme)
		}
	}

	return inbounds, nil
}

func getInboundSchemeToURLMap(schemeHostStr []string) (map[string]string, error) {
	const validSliceLen = 2

	schemeHostMap := make(map[string]string)

	for _, schemeHost := range schemeHostStr {
		schemeHostSlice := strings.Split(schemeHost, "@")
		if len(schemeHostSlice) != validSliceLen {
			return nil, fmt.Errorf("invalid inbound host option: Use scheme@url to pass the option")
		}

		schemeHostMap[schemeHostSlice[0]] = schemeHostSlice[1]
	}

	return schemeHostMap, nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *agentParameters) error { //nolint: funlen
	if parameters.host == "" {
		return errMissingHost
	}

	registry := prometheus.NewRegistry()

	agent, err := createVASP(parameters, registry)
	if err != nil {
		return fmt.Errorf("failed to start vasp agent rest on port [%s] : %w", parameters.host, err)
	}

	handlers, err := controller.GetRESTHandlers(agent, controller.WithWebhookURLs(parameters.webhookURLs...))
	if err != nil {
		return fmt.Errorf("failed to start vasp agent rest on port [%s], failed to get rest service api :  %w",
			parameters.host, err)
	}

	inbounds, err := getInbounds(parameters.inboundHosts, agent.HandleInbound)
	if err != nil {
		return fmt.Errorf("failed to start vasp agent rest on port [%s] : %w", parameters.host, err)
	}

	router := mux.NewRouter()

	// peers authenticate with signed envelopes, the admin API with the bearer token
	httptransport.Register(router, agent.HandleInbound)
	router.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	admin := router.NewRoute().Subrouter()
	if parameters.token != "" {
		admin.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		admin.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, in := range inbounds {
		if err := in.Start(); err != nil {
			return fmt.Errorf("failed to start inbound transport : %w", err)
		}

		defer stopInbound(in)
	}

	agent.Start(ctx)

	defer func() {
		if err := agent.Close(); err != nil {
			logger.Warnf("close vasp agent: %v", err)
		}
	}()

	logger.Infof("Starting vasp agent rest on host [%s] for %s", parameters.host, agent.Address())

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start vasp agent rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func stopInbound(in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := in.Stop(ctx); err != nil {
		logger.Warnf("stop inbound transport: %v", err)
	}
}

func createVASP(parameters *agentParameters, registerer prometheus.Registerer) (*vasp.VASP, error) {
	my, err := address.Parse(parameters.address)
	if err != nil {
		return nil, fmt.Errorf("vasp address : %w", err)
	}

	rawKey, err := os.ReadFile(parameters.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read compliance key : %w", err)
	}

	key, err := envelope.ParseJWK(rawKey)
	if err != nil {
		return nil, fmt.Errorf("compliance key : %w", err)
	}

	directory, err := vasp.ReadDirectory(parameters.peersFile)
	if err != nil {
		return nil, err
	}

	storePro, err := createStoreProvider(parameters)
	if err != nil {
		return nil, err
	}

	outbound, err := getOutboundTransports(parameters.outboundTransports)
	if err != nil {
		return nil, err
	}

	return vasp.New(my, key, directory,
		vasp.WithStorageProvider(storePro),
		vasp.WithOutboundTransport(outbound...),
		vasp.WithRetryInterval(parameters.retryInterval),
		vasp.WithMetrics(metrics.New(registerer)),
	)
}

func createStoreProvider(parameters *agentParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("database type not set to a valid type." +
			" run start --help to see the available options")
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.path)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.path, err)
	}

	return store, nil
}
