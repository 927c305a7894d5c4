package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	accesshandler "custodia/internal/access/handler"
	accessmodels "custodia/internal/access/models"
	accessservice "custodia/internal/access/service"
	accessstore "custodia/internal/access/store"
	"custodia/internal/attestation"
	"custodia/internal/custody"
	custodyhandler "custodia/internal/custody/handler"
	envelopehandler "custodia/internal/envelope/handler"
	envelopemetrics "custodia/internal/envelope/metrics"
	envelopeservice "custodia/internal/envelope/service"
	envelopestore "custodia/internal/envelope/store"
	"custodia/internal/fx"
	"custodia/internal/identity"
	identityhandler "custodia/internal/identity/handler"
	jwttoken "custodia/internal/jwt_token"
	"custodia/internal/platform/config"
	"custodia/internal/platform/metrics"
	"custodia/internal/policy/adapters"
	"custodia/internal/policy/catalog"
	policyhandler "custodia/internal/policy/handler"
	policymetrics "custodia/internal/policy/metrics"
	policyservice "custodia/internal/policy/service"
	policystore "custodia/internal/policy/store"
	repohandler "custodia/internal/repo/handler"
	repometrics "custodia/internal/repo/metrics"
	reposervice "custodia/internal/repo/service"
	repostore "custodia/internal/repo/store"
	"custodia/internal/rules/cash"
	"custodia/internal/rules/collateral"
	"custodia/internal/rules/threshold"
	httptransport "custodia/internal/transport/http"
	id "custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publishers/compliance"
	"custodia/pkg/platform/audit/publishers/security"
	auditmemory "custodia/pkg/platform/audit/store/memory"
	auditpostgres "custodia/pkg/platform/audit/store/postgres"
	"custodia/pkg/platform/audit/worker"
	"custodia/pkg/platform/middleware/admin"
	"custodia/pkg/platform/tx"
)

// Evaluator references the reference rules are registered under.
const (
	refCollateral = "collateral-sufficiency"
	refCash       = "cash-adequacy"
	refThreshold  = "threshold"
)

// app is the assembled process: services, background runners and router.
// underlyingLedger is the custody the envelope locks into and the issuer
// deposits through.
type underlyingLedger interface {
	envelopeservice.Custodian
	custodyhandler.Vault
}

type app struct {
	access   *accessservice.Service
	policy   *policyservice.Service
	envelope *envelopeservice.Service
	repo     *reposervice.Service
	security *security.Publisher
	catalog  *catalog.Notifier
	outbox   *worker.Worker
	router   http.Handler
}

func buildApp(cfg config.Server, log *slog.Logger, in *infra) (*app, error) {
	ledgerOpts := []tx.LedgerOption{tx.WithTimeout(cfg.LedgerTxTimeout)}
	if in.db != nil {
		ledgerOpts = append(ledgerOpts, tx.WithDB(in.db))
	}
	ledger := tx.NewLedger(ledgerOpts...)

	a := &app{}

	var auditStore audit.Store
	if in.db != nil {
		outboxStore := auditpostgres.New(in.db)
		auditStore = outboxStore
		if in.producer != nil {
			a.outbox = worker.NewWorker(in.db, outboxStore, in.producer, cfg.Kafka.AuditTopic, worker.WithLogger(log))
		}
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	compliancePublisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	a.security = security.New(auditStore, security.WithLogger(log))

	var err error
	a.access, err = accessservice.New(accessstore.NewInMemory(), ledger,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(compliancePublisher),
	)
	if err != nil {
		return nil, fmt.Errorf("access service: %w", err)
	}

	verifier := attestation.NewVerifier()
	for issuer, key := range cfg.Attestation.TrustedIssuers {
		if err := verifier.TrustEncoded(issuer, key); err != nil {
			return nil, fmt.Errorf("trust attestation issuer: %w", err)
		}
	}

	credentials := identity.NewRegistry()
	evaluators := policyservice.NewEvaluatorRegistry()
	var policyStore policyservice.Store = policystore.NewInMemory()
	if in.db != nil {
		policyStore = policystore.NewPostgres(in.db)
	}
	policyMetrics := policymetrics.New()
	policyOpts := []policyservice.Option{
		policyservice.WithLogger(log),
		policyservice.WithAuditPublisher(compliancePublisher),
		policyservice.WithMetrics(policyMetrics),
	}
	if in.producer != nil {
		a.catalog = catalog.New(in.producer, cfg.Kafka.CatalogTopic,
			catalog.WithLogger(log),
			catalog.WithMetrics(policyMetrics),
		)
		policyOpts = append(policyOpts, policyservice.WithCatalogNotifier(a.catalog))
	}
	a.policy, err = policyservice.New(policyStore, evaluators, adapters.NewIdentityAdapter(credentials),
		verifier, a.access, ledger, policyOpts...)
	if err != nil {
		return nil, fmt.Errorf("policy service: %w", err)
	}

	var rateSource fx.Source
	if in.redis != nil {
		rateSource = fx.NewRedisSource(in.redis.Client)
	} else {
		static := fx.NewStaticSource()
		if err := seedRates(static, cfg.FX.StaticRates); err != nil {
			return nil, err
		}
		rateSource = static
	}
	oracle, err := fx.NewOracle(rateSource)
	if err != nil {
		return nil, fmt.Errorf("fx oracle: %w", err)
	}

	// Agreements, envelope units and the underlying they lock always share
	// one backend.
	var (
		vault         underlyingLedger      = custody.NewVault()
		envelopeStore envelopeservice.Store = envelopestore.NewInMemory()
		repoStore     reposervice.Store     = repostore.NewInMemory()
	)
	if in.db != nil {
		vault = custody.NewPostgresVault(in.db)
		envelopeStore = envelopestore.NewPostgres(in.db)
		repoStore = repostore.NewPostgres(in.db)
	}
	a.envelope, err = envelopeservice.New(envelopeStore, a.policy, vault, verifier, oracle, a.access, ledger,
		envelopeservice.WithLogger(log),
		envelopeservice.WithAuditPublisher(compliancePublisher),
		envelopeservice.WithSecurityPublisher(a.security),
		envelopeservice.WithMetrics(envelopemetrics.New()),
		envelopeservice.WithCustodyAccount(id.PartyID(cfg.Envelope.Custody)),
	)
	if err != nil {
		return nil, fmt.Errorf("envelope service: %w", err)
	}
	if err := registerEvaluators(evaluators, a.envelope, cfg.Rules); err != nil {
		return nil, err
	}

	a.repo, err = reposervice.New(repoStore, a.envelope, a.policy, a.access, ledger,
		reposervice.WithLogger(log),
		reposervice.WithAuditPublisher(compliancePublisher),
		reposervice.WithMetrics(repometrics.New()),
		reposervice.WithEngineParty(id.PartyID(cfg.Repo.Party)),
	)
	if err != nil {
		return nil, fmt.Errorf("repo service: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	a.router = httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		RequestTimeout: cfg.RequestTimeout,
		Health:         in.healthChecks(),
	},
		policyhandler.New(a.policy, log),
		envelopehandler.New(a.envelope, log),
		repohandler.New(a.repo, log),
		accesshandler.New(a.access, log),
		httptransport.Guarded(identityhandler.New(credentials, log),
			admin.RequireRole[accessmodels.Role](a.access, accessmodels.RolePolicyAdmin, log)),
		httptransport.Guarded(custodyhandler.New(vault, ledger, log),
			admin.RequireRole[accessmodels.Role](a.access, accessmodels.RoleAssetAdmin, log)),
	)
	return a, nil
}

// registerEvaluators binds the reference rules to their evaluator
// references. The envelope reads the balances the rules check.
func registerEvaluators(registry *policyservice.EvaluatorRegistry, balances *envelopeservice.Service, cfg config.RulesConfig) error {
	sufficiency, err := collateral.New(balances, collateral.WithMinTicket(id.Amount(cfg.CollateralMinTicket)))
	if err != nil {
		return fmt.Errorf("collateral evaluator: %w", err)
	}
	adequacy, err := cash.New(balances, cash.WithBounds(id.Amount(cfg.CashMin), id.Amount(cfg.CashMax)))
	if err != nil {
		return fmt.Errorf("cash evaluator: %w", err)
	}
	if err := registry.Register(refCollateral, sufficiency); err != nil {
		return err
	}
	if err := registry.Register(refCash, adequacy); err != nil {
		return err
	}
	if cfg.TransferCeiling > 0 {
		limit, err := threshold.New(id.Amount(cfg.TransferCeiling))
		if err != nil {
			return fmt.Errorf("threshold evaluator: %w", err)
		}
		if err := registry.Register(refThreshold, limit); err != nil {
			return err
		}
	}
	return nil
}

// seedRates loads FROM:TO=rate pairs into the static table.
func seedRates(source *fx.StaticSource, rates map[string]uint64) error {
	pairs := make([]string, 0, len(rates))
	for pair := range rates {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		fromRaw, toRaw, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("fx rate %q: want FROM:TO", pair)
		}
		from, err := id.ParseCurrency(fromRaw)
		if err != nil {
			return fmt.Errorf("fx rate %q: %w", pair, err)
		}
		to, err := id.ParseCurrency(toRaw)
		if err != nil {
			return fmt.Errorf("fx rate %q: %w", pair, err)
		}
		if rates[pair] == 0 {
			return fmt.Errorf("fx rate %q must be positive", pair)
		}
		source.Set(from, to, fx.Rate(rates[pair]))
	}
	return nil
}
