package sqlinline

const transactionColumns = `id::text, account_id::text, plan_id, amount_minor, currency, credits, status, reference, created_at, completed_at`

const QInsertCreditTransaction = `--sql 58823588-cc78-48d8-9b6b-971d3c9f4149
insert into credit_transactions (account_id, plan_id, amount_minor, currency, credits, reference)
values ($1::uuid, $2::text, $3::bigint, $4::text, $5::int, $6::text)
returning id::text, status, created_at;
`

const QSelectCreditTransactionByReference = `--sql ba1fc767-8bca-4396-b840-a291c3ca8031
select ` + transactionColumns + `
from credit_transactions
where reference = $1::text
limit 1;
`

// QCompleteCreditTransaction flips pending to completed and grants credits
// plus the elevated tier in the same statement. A non-pending row matches
// nothing, so replays grant nothing.
const QCompleteCreditTransaction = `--sql 4d273365-26e2-4116-9a12-33eaf4562ec8
with completed as (
    update credit_transactions
    set status = 'completed', completed_at = $3::timestamptz
    where reference = $1::text and status = 'pending'
    returning ` + transactionColumns + `
),
granted as (
    update accounts a
    set credits = a.credits + c.credits,
        tier = 'elevated',
        tier_expires_at = greatest(coalesce(a.tier_expires_at, $3::timestamptz), $3::timestamptz)
            + make_interval(months => $2::int),
        updated_at = now()
    from completed c
    where a.id = c.account_id::uuid
    returning a.id
)
select ` + transactionColumns + `
from completed;
`

const QExpirePendingTransactions = `--sql 1aff93fe-13c2-4cb4-8944-436d4b296c7d
update credit_transactions
set status = 'expired'
where status = 'pending' and created_at < $1::timestamptz;
`
