package sqlinline

const QInsertRenderJob = `--sql 98325f2d-c129-4850-9fd5-4a8c170fbd42
insert into render_jobs(
  id,
  user_id,
  status,
  progress,
  template_id,
  psd_url,
  user_image_url,
  make,
  model,
  year,
  description,
  instagram_handle,
  fonts_used,
  supported_texts,
  hex_colour,
  hex_elements
)
values (
  $1::text,
  $2::text,
  'queued',
  '',
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::text,
  $10::text,
  $11::text[],
  $12::text[],
  $13::text,
  coalesce($14::jsonb, '{}'::jsonb)
)
on conflict (id) do nothing
returning id;
`

const QClaimRenderJob = `--sql fdc3afb3-393e-4a26-b5c5-adab94f4a4e4
with next_job as (
  select id
  from render_jobs
  where status = 'queued'
  order by created_at asc
  for update skip locked
  limit 1
),
claimed as (
  update render_jobs
  set status = 'in-progress', updated_at = now()
  where id in (select id from next_job)
  returning id, user_id, template_id, psd_url, user_image_url,
            make, model, year, description, instagram_handle,
            fonts_used, supported_texts, hex_colour, hex_elements
)
select * from claimed;
`

const QUpdateJobProgress = `--sql 11245705-1daf-4025-8476-f7ae2b4d1f40
update render_jobs
set progress = $2::text, updated_at = now()
where id = $1::text and status = 'in-progress';
`

const QCompleteJob = `--sql 7b0915dd-ca4e-4140-840f-362c429e31ed
update render_jobs
set status = 'complete', progress = 'Complete', result_url = $2::text, updated_at = now()
where id = $1::text and status in ('queued', 'in-progress');
`

const QFailJob = `--sql 0d21050c-7fc4-4041-be79-f58aca198d64
update render_jobs
set status = 'error', error = $2::text, updated_at = now()
where id = $1::text and status in ('queued', 'in-progress');
`

const QSelectJobForUser = `--sql 09127bb8-f4ae-4f07-a576-ebac909ad89c
select id, user_id, status, progress, template_id, psd_url, user_image_url,
       make, model, year, description, instagram_handle,
       fonts_used, supported_texts, hex_colour, hex_elements,
       result_url, error, created_at, updated_at
from render_jobs
where id = $1::text and user_id = $2::text;
`
