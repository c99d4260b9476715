package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/intake"
	"roxtor/backend/internal/xid"
)

func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}

func (s *Service) SaveStore(ctx context.Context, st domain.Store) (domain.Store, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Store{}, err
	}
	st.ID = strings.TrimSpace(st.ID)
	st.Name = strings.ToUpper(strings.TrimSpace(st.Name))
	st.Prefix = strings.ToUpper(strings.TrimSpace(st.Prefix))
	saved, err := s.repo.SaveStore(ctx, st)
	if err != nil {
		return domain.Store{}, err
	}
	s.changed()
	return *saved, nil
}

// ListProducts returns the catalog offered by storeID, or every product when
// storeID is empty.
func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return products, nil
	}
	visible := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.VisibleIn(storeID) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = xid.New("prod")

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(logrus.Fields{"func": "CreateProduct", "product_id": created.ID}).Info("product created")
	s.changed()
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	product, err := productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = existing.ID

	saved, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.changed()
	return *saved, nil
}

func productFromRequest(req domain.ProductRequest) (domain.Product, error) {
	p := domain.Product{
		StoreID:                  strings.TrimSpace(req.StoreID),
		Name:                     strings.ToUpper(strings.TrimSpace(req.Name)),
		PriceRetail:              req.PriceRetail,
		PriceWholesale:           req.PriceWholesale,
		Material:                 strings.TrimSpace(req.Material),
		Description:              strings.TrimSpace(req.Description),
		AdditionalConsiderations: strings.TrimSpace(req.AdditionalConsiderations),
		ImageURL:                 strings.TrimSpace(req.ImageURL),
		Stock:                    req.Stock,
		Category:                 strings.ToLower(strings.TrimSpace(req.Category)),
	}
	if p.StoreID == "" {
		p.StoreID = domain.ProductScopeGlobal
	}
	if p.Category == "" {
		p.Category = domain.ProductCategoryGood
	}
	if p.PriceWholesale.IsZero() {
		p.PriceWholesale = p.PriceRetail
	}

	var fields []string
	if p.Name == "" {
		fields = append(fields, "Nombre")
	}
	if !p.PriceRetail.IsPositive() {
		fields = append(fields, "Precio Detal")
	}
	if p.PriceWholesale.IsNegative() {
		fields = append(fields, "Precio Mayor")
	}
	if p.Stock < 0 {
		fields = append(fields, "Stock")
	}
	if p.Category != domain.ProductCategoryGood && p.Category != domain.ProductCategoryService {
		fields = append(fields, "Categoría")
	}
	if len(fields) > 0 {
		return domain.Product{}, &intake.ValidationError{Fields: fields}
	}
	return p, nil
}

func (s *Service) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	return s.repo.ListAgents(ctx)
}

func (s *Service) CreateAgent(ctx context.Context, agent domain.Agent) (domain.Agent, error) {
	agent.Name = strings.ToUpper(strings.TrimSpace(agent.Name))
	agent.Role = strings.TrimSpace(agent.Role)
	agent.Phone = strings.TrimSpace(agent.Phone)
	agent.StoreID = s.storeID(agent.StoreID)
	if agent.Name == "" {
		return domain.Agent{}, &intake.ValidationError{Fields: []string{"Nombre"}}
	}
	agent.ID = xid.New("agent")

	created, err := s.repo.CreateAgent(ctx, agent)
	if err != nil {
		return domain.Agent{}, err
	}
	s.changed()
	return *created, nil
}

func (s *Service) ListWorkshops(ctx context.Context) ([]domain.Workshop, error) {
	return s.repo.ListWorkshops(ctx)
}

func (s *Service) CreateWorkshop(ctx context.Context, workshop domain.Workshop) (domain.Workshop, error) {
	workshop.Name = strings.ToUpper(strings.TrimSpace(workshop.Name))
	workshop.Department = domain.Department(strings.ToUpper(strings.TrimSpace(string(workshop.Department))))
	workshop.CustomDepartment = strings.ToUpper(strings.TrimSpace(workshop.CustomDepartment))
	workshop.Phone = strings.TrimSpace(workshop.Phone)
	workshop.StoreID = s.storeID(workshop.StoreID)

	var fields []string
	if workshop.Name == "" {
		fields = append(fields, "Nombre")
	}
	if !workshop.Department.Valid() {
		fields = append(fields, "Departamento")
	} else if workshop.Department == domain.DepartmentOther && workshop.CustomDepartment == "" {
		fields = append(fields, "Departamento Personalizado")
	}
	if len(fields) > 0 {
		return domain.Workshop{}, &intake.ValidationError{Fields: fields}
	}
	workshop.ID = xid.New("ws")

	created, err := s.repo.CreateWorkshop(ctx, workshop)
	if err != nil {
		return domain.Workshop{}, err
	}
	s.changed()
	return *created, nil
}

// Settings returns the settings without secrets.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings.Public(), nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Settings{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	if req.BusinessName != nil {
		settings.BusinessName = strings.TrimSpace(*req.BusinessName)
	}
	if req.Slogan != nil {
		settings.Slogan = strings.TrimSpace(*req.Slogan)
	}
	if req.Instagram != nil {
		settings.Instagram = strings.TrimSpace(*req.Instagram)
	}
	if req.CompanyPhone != nil {
		settings.CompanyPhone = strings.TrimSpace(*req.CompanyPhone)
	}
	if req.PreferredTone != nil {
		settings.PreferredTone = strings.TrimSpace(*req.PreferredTone)
	}
	if req.BCVRate != nil {
		if req.BCVRate.IsNegative() {
			return domain.Settings{}, &intake.ValidationError{Fields: []string{"Tasa BCV"}}
		}
		settings.BCVRate = *req.BCVRate
	}
	if req.CloudSync != nil {
		next := *req.CloudSync
		if next.APIKey == "" {
			next.APIKey = settings.CloudSync.APIKey
		}
		settings.CloudSync = next
	}
	if req.PagoMovil != nil {
		pm := *req.PagoMovil
		settings.PagoMovil = &pm
	}

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	s.logger.WithFields(logrus.Fields{"func": "UpdateSettings", "bcv_rate": settings.BCVRate.String()}).Info("settings updated")
	s.changed()
	return settings.Public(), nil
}

// EnsurePINs stores bcrypt hashes of the configured PINs when the persisted
// hashes are missing or no longer match.
func (s *Service) EnsurePINs(ctx context.Context, loginPIN string, masterPIN string) error {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	changed := false
	for _, pin := range []struct {
		value string
		hash  *string
	}{
		{value: strings.TrimSpace(loginPIN), hash: &settings.LoginPINHash},
		{value: strings.TrimSpace(masterPIN), hash: &settings.MasterPINHash},
	} {
		if pin.value == "" || matchesPIN(*pin.hash, pin.value) {
			continue
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(pin.value), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		*pin.hash = string(hashed)
		changed = true
	}
	if !changed {
		return nil
	}
	return s.repo.SaveSettings(ctx, settings)
}

// VerifyPIN returns the role unlocked by pin. The master PIN grants admin.
func (s *Service) VerifyPIN(ctx context.Context, pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", ErrInvalidPIN
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	if matchesPIN(settings.MasterPINHash, pin) {
		return domain.RoleAdmin, nil
	}
	if matchesPIN(settings.LoginPINHash, pin) {
		return domain.RoleStaff, nil
	}
	return "", ErrInvalidPIN
}

func matchesPIN(hash string, pin string) bool {
	if hash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
